package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"materials-erp/apperr"
	"materials-erp/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestStockService_Components(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.stock.CreateComponent(env.actor("prod.staff"), ComponentInput{Code: "BRG-6204", Name: "Bearing"})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization), "got %v", err)

	_, err = env.stock.CreateComponent(env.actor("inv.head"), ComponentInput{Name: "No code"})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	env.component(t, "BRG-6204", 0)
	env.component(t, "BLT-M10", 0)

	_, err = env.stock.CreateComponent(env.actor("admin"), ComponentInput{Code: "BRG-6204", Name: "Bearing again"})
	assert.True(t, apperr.Is(err, apperr.KindIntegrity), "got %v", err)

	all, err := env.stock.ListComponents("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BLT-M10", all[0].Code)

	found, err := env.stock.ListComponents("6204")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "BRG-6204", found[0].Code)

	_, err = env.stock.GetComponent(999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
}

func TestStockService_OpeningReceiptAndCard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "OIL-HYD46", 0)

	_, err := env.stock.OpeningReceipt(ctx, env.actor("prod.head"), OpeningInput{ComponentID: comp.ID, Qty: 4})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization), "got %v", err)

	_, err = env.stock.OpeningReceipt(ctx, env.actor("inv.head"), OpeningInput{ComponentID: comp.ID, Qty: 0})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	_, err = env.stock.OpeningReceipt(ctx, env.actor("inv.head"), OpeningInput{ComponentID: 999, Qty: 1})
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	balance, err := env.stock.OpeningReceipt(ctx, env.actor("inv.head"), OpeningInput{ComponentID: comp.ID, Qty: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, balance)
	balance, err = env.stock.OpeningReceipt(ctx, env.actor("inv.head"), OpeningInput{ComponentID: comp.ID, Qty: 6, RefNo: "COUNT-2026"})
	require.NoError(t, err)
	assert.Equal(t, 10, balance)

	card, err := env.stock.Card(comp.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, card, 2)
	assert.Equal(t, "OPENING", card[0].RefNo)
	assert.Equal(t, 4, card[0].Balance)
	assert.Equal(t, "COUNT-2026", card[1].RefNo)
	assert.Equal(t, 10, card[1].Balance)
	assert.Equal(t, models.StockTxOpening, card[1].TxType)
	assert.Equal(t, "Inventory Head", card[1].ActorName)

	future, err := env.stock.Card(comp.ID, time.Now().UTC().Add(time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, future)

	_, err = env.stock.Card(999, time.Time{}, time.Time{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	buf, err := env.stock.ExportCard(comp.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	onHand, err := f.GetCellValue("Stock Card", "B2")
	require.NoError(t, err)
	assert.Equal(t, "10", onHand)
	ref, err := f.GetCellValue("Stock Card", "C6")
	require.NoError(t, err)
	assert.Equal(t, "COUNT-2026", ref)
}
