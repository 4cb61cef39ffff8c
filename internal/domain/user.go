package domain

import "time"

// User es un usuario demo del banco. PINHash guarda bcrypt del PIN,
// nunca el PIN en claro.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PINHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
