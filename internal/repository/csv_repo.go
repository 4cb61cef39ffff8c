package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"bank-assist/internal/domain"
)

// Repositorios demo respaldados por CSV planos (users.csv,
// transactions.csv, policies.csv). Se cargan completos al arranque y
// quedan inmutables: las lecturas posteriores no tocan disco.

type CSVAccountRepository struct {
	balances     map[string]domain.Balance
	transactions map[string][]domain.Transaction
}

// NewCSVAccountRepository carga users.csv y transactions.csv desde dataDir.
// users.csv: user_id,name,pin_hash,balance,account_type
// transactions.csv: user_id,date,merchant,amount
func NewCSVAccountRepository(dataDir string) (*CSVAccountRepository, error) {
	userRows, err := readCSV(filepath.Join(dataDir, "users.csv"))
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	txnRows, err := readCSV(filepath.Join(dataDir, "transactions.csv"))
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	repo := &CSVAccountRepository{
		balances:     make(map[string]domain.Balance),
		transactions: make(map[string][]domain.Transaction),
	}

	for i, row := range userRows {
		if len(row) < 5 {
			return nil, fmt.Errorf("users.csv row %d: expected 5 columns, got %d", i+2, len(row))
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("users.csv row %d: balance: %w", i+2, err)
		}
		userID := strings.TrimSpace(row[0])
		repo.balances[userID] = domain.Balance{
			UserID:      userID,
			Amount:      amount,
			AccountType: strings.TrimSpace(row[4]),
		}
	}

	for i, row := range txnRows {
		if len(row) < 4 {
			return nil, fmt.Errorf("transactions.csv row %d: expected 4 columns, got %d", i+2, len(row))
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("transactions.csv row %d: date: %w", i+2, err)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("transactions.csv row %d: amount: %w", i+2, err)
		}
		userID := strings.TrimSpace(row[0])
		repo.transactions[userID] = append(repo.transactions[userID], domain.Transaction{
			UserID:   userID,
			Date:     date,
			Merchant: strings.TrimSpace(row[2]),
			Amount:   amount,
		})
	}
	for _, txns := range repo.transactions {
		sort.Slice(txns, func(i, j int) bool { return txns[i].Date.After(txns[j].Date) })
	}

	return repo, nil
}

func (r *CSVAccountRepository) GetBalance(_ context.Context, userID string) (domain.Balance, error) {
	b, ok := r.balances[userID]
	if !ok {
		return domain.Balance{}, ErrNotFound
	}
	return b, nil
}

func (r *CSVAccountRepository) ListTransactions(_ context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	txns := r.transactions[userID]
	if len(txns) > limit {
		txns = txns[:limit]
	}
	out := make([]domain.Transaction, len(txns))
	copy(out, txns)
	return out, nil
}

type CSVPolicyRepository struct {
	policies []domain.Policy
}

// NewCSVPolicyRepository carga policies.csv (topic,content) desde dataDir.
func NewCSVPolicyRepository(dataDir string) (*CSVPolicyRepository, error) {
	rows, err := readCSV(filepath.Join(dataDir, "policies.csv"))
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	repo := &CSVPolicyRepository{}
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("policies.csv row %d: expected 2 columns, got %d", i+2, len(row))
		}
		repo.policies = append(repo.policies, domain.Policy{
			Topic:   strings.ToLower(strings.TrimSpace(row[0])),
			Content: strings.TrimSpace(row[1]),
		})
	}
	return repo, nil
}

func (r *CSVPolicyRepository) FindByTopic(_ context.Context, topic string) (domain.Policy, error) {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return domain.Policy{}, ErrNotFound
	}
	for _, p := range r.policies {
		if strings.Contains(topic, p.Topic) || strings.Contains(p.Topic, topic) {
			return p, nil
		}
	}
	return domain.Policy{}, ErrNotFound
}

type CSVUserRepository struct {
	users map[string]domain.User
}

// NewCSVUserRepository carga identidad y pin_hash desde users.csv.
func NewCSVUserRepository(dataDir string) (*CSVUserRepository, error) {
	rows, err := readCSV(filepath.Join(dataDir, "users.csv"))
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	repo := &CSVUserRepository{users: make(map[string]domain.User)}
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("users.csv row %d: expected at least 3 columns, got %d", i+2, len(row))
		}
		userID := strings.TrimSpace(row[0])
		repo.users[userID] = domain.User{
			ID:      userID,
			Name:    strings.TrimSpace(row[1]),
			PINHash: strings.TrimSpace(row[2]),
		}
	}
	return repo, nil
}

func (r *CSVUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

// readCSV lee un archivo CSV con header y devuelve solo las filas de datos.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}
