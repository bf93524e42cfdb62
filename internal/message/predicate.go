package message

import (
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// Predicate is the search predicate algebra spec.md §9 calls for in place
// of JavaMail search terms: SenderContains | SubjectContains |
// SentDateBetween | And | Or | Not.
type Predicate interface {
	Match(m *Message) bool
}

type senderContains struct{ substr string }

func (p senderContains) Match(m *Message) bool {
	from, err := m.GetFrom()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(from), strings.ToLower(p.substr))
}

// SenderContains matches messages whose From header contains substr
// (case-insensitive).
func SenderContains(substr string) Predicate { return senderContains{substr: substr} }

type subjectContains struct{ substr string }

func (p subjectContains) Match(m *Message) bool {
	subj, err := m.GetSubject()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(subj), strings.ToLower(p.substr))
}

// SubjectContains matches messages whose Subject contains substr
// (case-insensitive).
func SubjectContains(substr string) Predicate { return subjectContains{substr: substr} }

type sentDateBetween struct{ from, to time.Time }

func (p sentDateBetween) Match(m *Message) bool {
	d, err := m.GetSentDate()
	if err != nil || d.IsZero() {
		return false
	}
	return !d.Before(p.from) && !d.After(p.to)
}

// SentDateBetween matches messages sent within [from, to] inclusive.
func SentDateBetween(from, to time.Time) Predicate { return sentDateBetween{from: from, to: to} }

type andPredicate []Predicate

func (p andPredicate) Match(m *Message) bool {
	for _, sub := range p {
		if !sub.Match(m) {
			return false
		}
	}
	return true
}

// And matches when every sub-predicate matches.
func And(preds ...Predicate) Predicate { return andPredicate(preds) }

type orPredicate []Predicate

func (p orPredicate) Match(m *Message) bool {
	for _, sub := range p {
		if sub.Match(m) {
			return true
		}
	}
	return false
}

// Or matches when any sub-predicate matches.
func Or(preds ...Predicate) Predicate { return orPredicate(preds) }

type notPredicate struct{ inner Predicate }

func (p notPredicate) Match(m *Message) bool { return !p.inner.Match(m) }

// Not negates a predicate.
func Not(p Predicate) Predicate { return notPredicate{inner: p} }

// Lower attempts to translate p into an IMAP SEARCH criteria the remote
// can evaluate directly, for ONLINE/REFRESH folders (spec.md §4.3). It
// supports SenderContains, SubjectContains, SentDateBetween, and And of
// those; anything else reports ok=false so the caller falls back to local
// evaluation.
func Lower(p Predicate) (criteria *imap.SearchCriteria, ok bool) {
	switch v := p.(type) {
	case senderContains:
		return &imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{{Key: "From", Value: v.substr}},
		}, true
	case subjectContains:
		return &imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: v.substr}},
		}, true
	case sentDateBetween:
		return &imap.SearchCriteria{Since: v.from, Before: v.to.Add(24 * time.Hour)}, true
	case andPredicate:
		merged := &imap.SearchCriteria{}
		for _, sub := range v {
			c, ok := Lower(sub)
			if !ok {
				return nil, false
			}
			merged.Header = append(merged.Header, c.Header...)
			if !c.Since.IsZero() {
				merged.Since = c.Since
			}
			if !c.Before.IsZero() {
				merged.Before = c.Before
			}
		}
		return merged, true
	default:
		return nil, false
	}
}
