package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bank-assist/internal/domain"
	"bank-assist/internal/llm"
	"bank-assist/internal/repository"
)

type mockAccountRepo struct {
	balance     domain.Balance
	balanceErr  error
	txns        []domain.Transaction
	txnsErr     error
	balanceHits int
	txnHits     int
	lastUser    string
}

func (m *mockAccountRepo) GetBalance(_ context.Context, userID string) (domain.Balance, error) {
	m.balanceHits++
	m.lastUser = userID
	if m.balanceErr != nil {
		return domain.Balance{}, m.balanceErr
	}
	return m.balance, nil
}

func (m *mockAccountRepo) ListTransactions(_ context.Context, userID string, _ int) ([]domain.Transaction, error) {
	m.txnHits++
	m.lastUser = userID
	if m.txnsErr != nil {
		return nil, m.txnsErr
	}
	return m.txns, nil
}

type mockPolicyFinder struct {
	policy domain.Policy
	err    error
	hits   int
	last   string
}

func (m *mockPolicyFinder) Find(_ context.Context, topic string) (domain.Policy, error) {
	m.hits++
	m.last = topic
	if m.err != nil {
		return domain.Policy{}, m.err
	}
	return m.policy, nil
}

func TestAccountHandler_ToolLoopBalance(t *testing.T) {
	repo := &mockAccountRepo{balance: domain.Balance{UserID: "user_101", Amount: 1520.50, AccountType: "Checking"}}
	mock := &llm.MockClient{Responses: []string{
		`{"tool": "get_my_balance"}`,
		"Your balance is $1520.50 (Checking).",
	}}
	h := NewAccountHandler(mock, repo, nil)

	out, err := h.Handle(context.Background(), nil, "user_101", "what is my balance")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "$1520.50") {
		t.Fatalf("expected balance in response, got %q", out)
	}
	if repo.balanceHits != 1 {
		t.Fatalf("expected one balance lookup, got %d", repo.balanceHits)
	}
	if repo.lastUser != "user_101" {
		t.Fatalf("lookup used user %q", repo.lastUser)
	}
	// La observacion del tool tiene que haber vuelto al modelo.
	if len(mock.Prompts) != 2 || !strings.Contains(mock.Prompts[1], "Balance: $1520.50") {
		t.Fatalf("tool observation missing from second prompt")
	}
}

func TestAccountHandler_DirectAnswerWithoutTools(t *testing.T) {
	repo := &mockAccountRepo{}
	mock := &llm.MockClient{Response: "You can check your balance or view transactions."}
	h := NewAccountHandler(mock, repo, nil)

	out, err := h.Handle(context.Background(), nil, "user_101", "what can you do")
	if err != nil {
		t.Fatal(err)
	}
	if repo.balanceHits+repo.txnHits != 0 {
		t.Fatal("no tool should run for a direct answer")
	}
	if out == "" {
		t.Fatal("empty response")
	}
}

func TestAccountHandler_ToolLoopBounded(t *testing.T) {
	repo := &mockAccountRepo{balance: domain.Balance{Amount: 10}}
	// El modelo insiste con tool calls; el loop corta en maxToolRounds y
	// toma la ultima salida como respuesta final.
	mock := &llm.MockClient{Response: `{"tool": "get_my_balance"}`}
	h := NewAccountHandler(mock, repo, nil)

	if _, err := h.Handle(context.Background(), nil, "u", "balance"); err != nil {
		t.Fatal(err)
	}
	if mock.Calls != maxToolRounds+1 {
		t.Fatalf("expected %d llm calls, got %d", maxToolRounds+1, mock.Calls)
	}
	if repo.balanceHits != maxToolRounds {
		t.Fatalf("expected %d tool executions, got %d", maxToolRounds, repo.balanceHits)
	}
}

func TestAccountHandler_ToolFailureFeedsErrorBack(t *testing.T) {
	repo := &mockAccountRepo{balanceErr: errors.New("db down")}
	mock := &llm.MockClient{Responses: []string{
		`{"tool": "get_my_balance"}`,
		"I could not retrieve your balance right now.",
	}}
	h := NewAccountHandler(mock, repo, nil)

	out, err := h.Handle(context.Background(), nil, "u", "balance")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mock.Prompts[1], "tool temporarily unavailable") {
		t.Fatal("tool error observation missing")
	}
	if strings.Contains(out, "db down") {
		t.Fatal("raw error leaked into response")
	}
}

func TestAccountHandler_Transactions(t *testing.T) {
	repo := &mockAccountRepo{txns: []domain.Transaction{
		{Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), Merchant: "Grocery Mart", Amount: 54.20},
	}}
	mock := &llm.MockClient{Responses: []string{
		`{"tool": "get_my_transactions"}`,
		"Here are your recent transactions.",
	}}
	h := NewAccountHandler(mock, repo, nil)

	if _, err := h.Handle(context.Background(), nil, "u", "show my transactions"); err != nil {
		t.Fatal(err)
	}
	if repo.txnHits != 1 {
		t.Fatalf("expected one transaction lookup, got %d", repo.txnHits)
	}
	if !strings.Contains(mock.Prompts[1], "Grocery Mart") {
		t.Fatal("transaction observation missing")
	}
}

func TestInfoHandler_PolicyLookup(t *testing.T) {
	finder := &mockPolicyFinder{policy: domain.Policy{Topic: "rates", Content: "Savings APY is currently 4.5%."}}
	mock := &llm.MockClient{Responses: []string{
		`{"tool": "get_bank_policies", "topic": "rates"}`,
		"Savings APY is currently 4.5%.",
	}}
	h := NewInfoHandler(mock, finder, nil)

	out, err := h.Handle(context.Background(), nil, "", "what are your savings rates")
	if err != nil {
		t.Fatal(err)
	}
	if finder.hits != 1 || finder.last != "rates" {
		t.Fatalf("policy lookup hits=%d topic=%q", finder.hits, finder.last)
	}
	if !strings.Contains(out, "4.5%") {
		t.Fatalf("got %q", out)
	}
}

func TestInfoHandler_PolicyNotFound(t *testing.T) {
	finder := &mockPolicyFinder{err: repository.ErrNotFound}
	mock := &llm.MockClient{Responses: []string{
		`{"tool": "get_bank_policies", "topic": "space travel"}`,
		"I couldn't find a specific policy on that.",
	}}
	h := NewInfoHandler(mock, finder, nil)

	if _, err := h.Handle(context.Background(), nil, "", "policy on space travel"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mock.Prompts[1], "couldn't find a specific policy") {
		t.Fatal("not-found observation missing")
	}
}

func TestInfoHandler_UnknownToolObserved(t *testing.T) {
	finder := &mockPolicyFinder{}
	mock := &llm.MockClient{Responses: []string{
		`{"tool": "get_my_balance"}`,
		"I can only answer general bank questions.",
	}}
	h := NewInfoHandler(mock, finder, nil)

	if _, err := h.Handle(context.Background(), nil, "", "balance please"); err != nil {
		t.Fatal(err)
	}
	if finder.hits != 0 {
		t.Fatal("info handler must not reach account tools")
	}
	if !strings.Contains(mock.Prompts[1], "unknown tool") {
		t.Fatal("unknown-tool observation missing")
	}
}

func TestBlockHandler_FixedRefusal(t *testing.T) {
	h := NewBlockHandler()
	out, err := h.Handle(context.Background(), nil, "", "whatever")
	if err != nil {
		t.Fatal(err)
	}
	if out != ReplyOffTopicBlocked {
		t.Fatalf("got %q", out)
	}
}

func TestAccountHandler_LLMFailure(t *testing.T) {
	h := NewAccountHandler(&llm.MockClient{Err: errors.New("boom")}, &mockAccountRepo{}, nil)
	if _, err := h.Handle(context.Background(), nil, "u", "balance"); err == nil {
		t.Fatal("expected error on llm failure")
	}
}
