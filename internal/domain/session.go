package domain

import "time"

// Session agrupa el historial ordenado de una conversacion.
// El store es dueño exclusivo de Messages; los handlers reciben copias.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
