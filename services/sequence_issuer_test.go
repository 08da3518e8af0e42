package services

import (
	"fmt"
	"sync"
	"testing"

	"materials-erp/apperr"
	"materials-erp/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSequenceIssuer_Formats(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		kind SequenceKind
		want []string
	}{
		{SeqDirectRequest, []string{"UMI1", "UMI2"}},
		{SeqProcurementRequest, []string{"MRF1", "MRF2"}},
		{SeqDraft, []string{"DRAFT-1", "DRAFT-2"}},
		{SeqIssue, []string{"MI1", "MI2"}},
		{SeqBackorder, []string{"BO-1", "BO-2"}},
		{SeqReturnLine, []string{"RO-1", "RO-2"}},
		{SeqMaterialReturn, []string{"MRN1", "MRN2"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			for _, want := range tt.want {
				var got string
				err := env.db.Transaction(func(tx *gorm.DB) error {
					var err error
					got, err = env.seq.Next(tx, tt.kind)
					return err
				})
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}

	t.Run("unknown_kind", func(t *testing.T) {
		_, err := env.seq.Next(env.db, SequenceKind("XX"))
		assert.True(t, apperr.Is(err, apperr.KindIntegrity), "got %v", err)
	})
}

func TestSequenceIssuer_PurchaseOrderPrefix(t *testing.T) {
	env := newTestEnv(t)
	next := func(prefix string) string {
		var no string
		require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
			var err error
			no, err = env.seq.NextPO(tx, prefix)
			return err
		}))
		return no
	}

	assert.Equal(t, "PO-1", next(""))
	assert.Equal(t, "PRJ0001", next("PRJ"))
	assert.Equal(t, "PRJ0002", next("PRJ"))
	assert.Equal(t, "MNT0001", next("MNT"))
	assert.Equal(t, "PO-2", next(""))
}

func TestSequenceIssuer_RollbackDoesNotRepeat(t *testing.T) {
	env := newTestEnv(t)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		if _, err := env.seq.Next(tx, SeqIssue); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	var no string
	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		var err error
		no, err = env.seq.Next(tx, SeqIssue)
		return err
	}))
	assert.Equal(t, "MI1", no)
}

func TestSequenceIssuer_IssueNumberWidth(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Create(&models.Sequence{Name: string(SeqIssue), Value: 9999999999999}).Error)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.seq.Next(tx, SeqIssue)
		return err
	})
	assert.True(t, apperr.Is(err, apperr.KindIntegrity), "got %v", err)
}

func TestSequenceIssuer_ConcurrentCallersNeverShare(t *testing.T) {
	env := newTestEnv(t)
	const callers = 24

	var wg sync.WaitGroup
	numbers := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.db.Transaction(func(tx *gorm.DB) error {
				var err error
				numbers[i], err = env.seq.Next(tx, SeqBackorder)
				return err
			})
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[numbers[i]], "number %s issued twice", numbers[i])
		seen[numbers[i]] = true
	}
	for n := 1; n <= callers; n++ {
		assert.True(t, seen[fmt.Sprintf("BO-%d", n)], "BO-%d missing", n)
	}
}
