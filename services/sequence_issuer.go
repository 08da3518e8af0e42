package services

import (
	"fmt"
	"materials-erp/apperr"
	"materials-erp/repositories"
	"time"

	"gorm.io/gorm"
)

type SequenceKind string

const (
	SeqDirectRequest      SequenceKind = "UMI"
	SeqProcurementRequest SequenceKind = "MRF"
	SeqDraft              SequenceKind = "DRAFT"
	SeqIssue              SequenceKind = "MI"
	SeqPurchaseOrder      SequenceKind = "PO"
	SeqBackorder          SequenceKind = "BO"
	SeqReturnLine         SequenceKind = "RO"
	SeqMaterialReturn     SequenceKind = "MRN"
)

// maxIssueNoLen is the width of the issue number column.
const maxIssueNoLen = 15

var sequenceFormat = map[SequenceKind]string{
	SeqDirectRequest:      "UMI%d",
	SeqProcurementRequest: "MRF%d",
	SeqDraft:              "DRAFT-%d",
	SeqIssue:              "MI%d",
	SeqPurchaseOrder:      "PO-%d",
	SeqBackorder:          "BO-%d",
	SeqReturnLine:         "RO-%d",
	SeqMaterialReturn:     "MRN%d",
}

// SequenceIssuer hands out gap-tolerant, never-repeating numbers. Each number
// comes from a counter row locked by the caller's transaction, so a rolled
// back operation may burn a number but two commits never share one.
type SequenceIssuer struct {
	Retries int
	Backoff time.Duration
}

func NewSequenceIssuer() *SequenceIssuer {
	return &SequenceIssuer{Retries: 5, Backoff: 20 * time.Millisecond}
}

// Next issues the next number of kind inside tx.
func (s *SequenceIssuer) Next(tx *gorm.DB, kind SequenceKind) (string, error) {
	format, ok := sequenceFormat[kind]
	if !ok {
		return "", apperr.Integrity("sequence", "unknown sequence kind %q", kind)
	}
	v, err := s.next(tx, string(kind))
	if err != nil {
		return "", err
	}
	no := fmt.Sprintf(format, v)
	if kind == SeqIssue && len(no) > maxIssueNoLen {
		return "", apperr.Integrity("sequence", "issue number %s exceeds %d characters", no, maxIssueNoLen)
	}
	return no, nil
}

// NextPO issues a purchase order number. A configured prefix gets its own
// counter and a zero-padded suffix (PRJ0007); no prefix yields PO-<n>.
func (s *SequenceIssuer) NextPO(tx *gorm.DB, prefix string) (string, error) {
	if prefix == "" {
		return s.Next(tx, SeqPurchaseOrder)
	}
	v, err := s.next(tx, string(SeqPurchaseOrder)+":"+prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, v), nil
}

func (s *SequenceIssuer) next(tx *gorm.DB, counter string) (int64, error) {
	var lastErr error
	for attempt := 0; attempt <= s.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.Backoff * time.Duration(attempt))
		}

		var v int64
		err := tx.Transaction(func(sp *gorm.DB) error {
			var err error
			v, err = repositories.NewSequenceRepository(sp).Next(counter)
			return err
		})
		if err == nil {
			return v, nil
		}
		if !repositories.IsRetryable(err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, &apperr.Error{
		Kind:   apperr.KindConflict,
		Reason: fmt.Sprintf("sequence %s is busy, retry the operation", counter),
		Entity: "sequence",
		Err:    lastErr,
	}
}
