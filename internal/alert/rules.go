package alert

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okamel/market-seasonality/internal/models"
)

// RuleList holds the session's alert rules in creation order. Rules are
// immutable once added and live only for the process lifetime; there is
// no persistence.
type RuleList struct {
	mu    sync.RWMutex
	rules []models.AlertRule
}

// NewRuleList creates an empty rule list
func NewRuleList() *RuleList {
	return &RuleList{}
}

// Add validates and appends a rule, assigning an ID and creation time
// when missing. The stored rule is returned.
func (l *RuleList) Add(rule models.AlertRule) (models.AlertRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	if !rule.AnchorDate.IsZero() {
		rule.AnchorDate = models.Day(rule.AnchorDate)
	}

	if err := rule.Validate(); err != nil {
		return models.AlertRule{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.rules {
		if existing.ID == rule.ID {
			return models.AlertRule{}, models.ErrInvalidRuleID
		}
	}
	l.rules = append(l.rules, rule)
	return rule, nil
}

// Delete removes the rule with the given ID
func (l *RuleList) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, rule := range l.rules {
		if rule.ID == id {
			l.rules = append(l.rules[:i], l.rules[i+1:]...)
			return nil
		}
	}
	return models.ErrRuleNotFound
}

// All returns the rules in creation order
func (l *RuleList) All() []models.AlertRule {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rules := make([]models.AlertRule, len(l.rules))
	copy(rules, l.rules)
	return rules
}

// Len returns the number of rules
func (l *RuleList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rules)
}
