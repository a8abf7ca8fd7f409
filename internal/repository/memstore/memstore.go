// Package memstore keeps every repository in process memory. It backs the
// service tests and the API when no Postgres DSN is configured.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-escalation/internal/domain"
	"github.com/spec-kit/ticket-escalation/internal/repository"
)

// Store holds the shared state behind the repository views.
type Store struct {
	mu sync.RWMutex

	tickets    map[string]domain.Ticket
	units      map[string]domain.Unit
	categories map[string]domain.Category
	users      []domain.User
	rules      map[string]domain.EscalationRule
	records    []domain.EscalationRecord
	executions []domain.RuleExecutionLog
	history    []domain.TicketHistory
	audit      []domain.AuditLogEntry
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tickets:    make(map[string]domain.Ticket),
		units:      make(map[string]domain.Unit),
		categories: make(map[string]domain.Category),
		rules:      make(map[string]domain.EscalationRule),
	}
}

func (s *Store) Tickets() repository.TicketRepository           { return ticketStore{s} }
func (s *Store) Units() repository.UnitRepository               { return unitStore{s} }
func (s *Store) Categories() repository.CategoryRepository      { return categoryStore{s} }
func (s *Store) Users() repository.UserRepository               { return userStore{s} }
func (s *Store) Rules() repository.EscalationRuleRepository     { return ruleStore{s} }
func (s *Store) Escalations() repository.EscalationRepository   { return escalationStore{s} }
func (s *Store) Executions() repository.RuleExecutionRepository { return executionStore{s} }
func (s *Store) History() repository.TicketHistoryRepository    { return historyStore{s} }
func (s *Store) Audit() repository.AuditLogRepository           { return auditStore{s} }
func (s *Store) Sequence() repository.SequenceSource            { return sequenceStore{s} }

// AuditEntries returns a snapshot of written audit entries.
func (s *Store) AuditEntries() []domain.AuditLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditLogEntry(nil), s.audit...)
}

// ExecutionLogs returns a snapshot of every rule execution log.
func (s *Store) ExecutionLogs() []domain.RuleExecutionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RuleExecutionLog(nil), s.executions...)
}

func newID() string { return uuid.NewString() }

type ticketStore struct{ s *Store }

func (r ticketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tickets {
		if existing.TicketNumber == ticket.TicketNumber {
			return repository.ErrDuplicateKey
		}
	}
	if ticket.ID == "" {
		ticket.ID = newID()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r ticketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (r ticketStore) UpdateLifecycle(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = ticket.Status
	stored.FirstResponseAt = ticket.FirstResponseAt
	stored.ResolvedAt = ticket.ResolvedAt
	stored.IsEscalated = ticket.IsEscalated
	stored.AssignedTo = ticket.AssignedTo
	stored.UpdatedAt = ticket.UpdatedAt
	r.s.tickets[ticket.ID] = stored
	return nil
}

func (r ticketStore) ListCandidates(_ context.Context, filter repository.CandidateFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if !matchesFilter(ticket, filter) || !pastCursor(ticket, filter.After) {
			continue
		}
		if filter.SkipSucceededRule != "" && r.s.succeeded(filter.SkipSucceededRule, ticket.ID) {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func pastCursor(t domain.Ticket, c *repository.CandidateCursor) bool {
	if c == nil {
		return true
	}
	if t.CreatedAt.Equal(c.CreatedAt) {
		return t.ID > c.ID
	}
	return t.CreatedAt.After(c.CreatedAt)
}

// succeeded must be called with mu held.
func (s *Store) succeeded(ruleID, ticketID string) bool {
	for _, log := range s.executions {
		if log.RuleID == ruleID && log.TicketID == ticketID && log.Outcome == domain.ExecutionSuccess {
			return true
		}
	}
	return false
}

func matchesFilter(t domain.Ticket, f repository.CandidateFilter) bool {
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, t.Type) {
		return false
	}
	if len(f.CategoryIDs) > 0 && (t.CategoryID == nil || !contains(f.CategoryIDs, *t.CategoryID)) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if f.MinUrgency != nil && t.UrgencyLevel < *f.MinUrgency {
		return false
	}
	if f.MinConfidence != nil && (t.ConfidenceScore == nil || *t.ConfidenceScore < *f.MinConfidence) {
		return false
	}
	if f.MaxSentiment != nil && (t.SentimentScore == nil || *t.SentimentScore > *f.MaxSentiment) {
		return false
	}
	if f.DeadlineBefore != nil && !t.SLADeadline.Before(*f.DeadlineBefore) {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type unitStore struct{ s *Store }

func (r unitStore) Create(_ context.Context, unit *domain.Unit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if unit.ID == "" {
		unit.ID = newID()
	}
	if unit.CreatedAt.IsZero() {
		unit.CreatedAt = time.Now().UTC()
	}
	unit.UpdatedAt = unit.CreatedAt
	r.s.units[unit.ID] = *unit
	return nil
}

func (r unitStore) Update(_ context.Context, unit *domain.Unit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.units[unit.ID]; !ok {
		return repository.ErrNotFound
	}
	unit.UpdatedAt = time.Now().UTC()
	r.s.units[unit.ID] = *unit
	return nil
}

func (r unitStore) GetByID(_ context.Context, id string) (*domain.Unit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	unit, ok := r.s.units[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &unit, nil
}

func (r unitStore) List(_ context.Context) ([]domain.Unit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Unit, 0, len(r.s.units))
	for _, unit := range r.s.units {
		result = append(result, unit)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type categoryStore struct{ s *Store }

func (r categoryStore) Create(_ context.Context, category *domain.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if category.ID == "" {
		category.ID = newID()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	r.s.categories[category.ID] = *category
	return nil
}

func (r categoryStore) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	category, ok := r.s.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &category, nil
}

type userStore struct{ s *Store }

func (r userStore) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateKey
		}
	}
	if user.ID == "" {
		user.ID = newID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	r.s.users = append(r.s.users, *user)
	return nil
}

func (r userStore) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.users {
		if r.s.users[i].ID == user.ID {
			user.UpdatedAt = time.Now().UTC()
			r.s.users[i] = *user
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.ID == id {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userStore) ListActiveByUnitAndRole(_ context.Context, unitID string, role domain.Role) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.User
	for _, user := range r.s.users {
		if user.UnitID == unitID && user.Role == role && user.IsActive {
			result = append(result, user)
		}
	}
	return result, nil
}

type ruleStore struct{ s *Store }

func (r ruleStore) Create(_ context.Context, rule *domain.EscalationRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rule.ID == "" {
		rule.ID = newID()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	rule.UpdatedAt = rule.CreatedAt
	r.s.rules[rule.ID] = *rule
	return nil
}

func (r ruleStore) Update(_ context.Context, rule *domain.EscalationRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.rules[rule.ID]
	if !ok {
		return repository.ErrNotFound
	}
	// counters are owned by IncrementCounters
	rule.ExecutionCount = stored.ExecutionCount
	rule.SuccessCount = stored.SuccessCount
	rule.LastExecutedAt = stored.LastExecutedAt
	rule.CreatedAt = stored.CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	r.s.rules[rule.ID] = *rule
	return nil
}

func (r ruleStore) GetByID(_ context.Context, id string) (*domain.EscalationRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rule, nil
}

func (r ruleStore) List(_ context.Context, activeOnly bool) ([]domain.EscalationRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.EscalationRule
	for _, rule := range r.s.rules {
		if activeOnly && !rule.IsActive {
			continue
		}
		result = append(result, rule)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r ruleStore) IncrementCounters(_ context.Context, id string, success bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return repository.ErrNotFound
	}
	rule.ExecutionCount++
	if success {
		rule.SuccessCount++
	}
	stamp := at
	rule.LastExecutedAt = &stamp
	r.s.rules[id] = rule
	return nil
}

type escalationStore struct{ s *Store }

func (r escalationStore) Create(_ context.Context, record *domain.EscalationRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if record.ID == "" {
		record.ID = newID()
	}
	stored := *record
	stored.TargetUnitIDs = append([]string(nil), record.TargetUnitIDs...)
	stored.CCUnitIDs = append([]string(nil), record.CCUnitIDs...)
	r.s.records = append(r.s.records, stored)
	return nil
}

func (r escalationStore) GetByID(_ context.Context, id string) (*domain.EscalationRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, record := range r.s.records {
		if record.ID == id {
			rec := record
			return &rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r escalationStore) ListByTicket(_ context.Context, ticketID string) ([]domain.EscalationRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.EscalationRecord
	for _, record := range r.s.records {
		if record.TicketID == ticketID {
			result = append(result, record)
		}
	}
	return result, nil
}

type executionStore struct{ s *Store }

func (r executionStore) Claim(_ context.Context, log *domain.RuleExecutionLog, staleBefore time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.executions {
		existing := &r.s.executions[i]
		if existing.RuleID != log.RuleID || existing.TicketID != log.TicketID {
			continue
		}
		switch existing.Outcome {
		case domain.ExecutionSuccess:
			return repository.ErrDuplicateKey
		case domain.ExecutionPending:
			if !existing.ExecutedAt.Before(staleBefore) {
				return repository.ErrDuplicateKey
			}
			detail := "claim abandoned by an earlier sweep"
			existing.Outcome = domain.ExecutionFailed
			existing.ErrorDetail = &detail
		}
	}
	log.ID = newID()
	log.Outcome = domain.ExecutionPending
	r.s.executions = append(r.s.executions, *log)
	return nil
}

func (r executionStore) Settle(_ context.Context, log *domain.RuleExecutionLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.executions {
		if r.s.executions[i].ID == log.ID && r.s.executions[i].Outcome == domain.ExecutionPending {
			r.s.executions[i] = *log
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r executionStore) Release(_ context.Context, log *domain.RuleExecutionLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.executions {
		if r.s.executions[i].ID == log.ID && r.s.executions[i].Outcome == domain.ExecutionPending {
			r.s.executions = append(r.s.executions[:i], r.s.executions[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r executionStore) ListByRule(_ context.Context, ruleID string, limit int) ([]domain.RuleExecutionLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.RuleExecutionLog
	for i := len(r.s.executions) - 1; i >= 0; i-- {
		if r.s.executions[i].RuleID != ruleID {
			continue
		}
		result = append(result, r.s.executions[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

type historyStore struct{ s *Store }

func (r historyStore) Create(_ context.Context, history *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if history.ID == "" {
		history.ID = newID()
	}
	r.s.history = append(r.s.history, *history)
	return nil
}

func (r historyStore) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.TicketHistory
	for _, entry := range r.s.history {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type auditStore struct{ s *Store }

func (r auditStore) Create(_ context.Context, entry *domain.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = newID()
	}
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

type sequenceStore struct{ s *Store }

// NextDaily mirrors the Postgres source: one past the count of tickets
// created on the day.
func (r sequenceStore) NextDaily(_ context.Context, dayStart time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	dayEnd := dayStart.AddDate(0, 0, 1)
	var count int64
	for _, ticket := range r.s.tickets {
		if !ticket.CreatedAt.Before(dayStart) && ticket.CreatedAt.Before(dayEnd) {
			count++
		}
	}
	return count + 1, nil
}
