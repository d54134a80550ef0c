package rep

import (
	"context"
	"testing"

	"github.com/gridquote/gridquote/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreepointBucket(t *testing.T) {
	assert.Equal(t, freepointBucketLow, freepointBucket(99_999))
	assert.Equal(t, freepointBucketMid, freepointBucket(100_000))
	assert.Equal(t, freepointBucketMid, freepointBucket(249_999))
	assert.Equal(t, freepointBucketHigh, freepointBucket(250_000))
	assert.Equal(t, freepointBucketHigh, freepointBucket(1_000_000))
}

func TestFreepointLoad(t *testing.T) {
	grid := [][]string{
		{"Freepoint Matrix Offer"},
		{"Start Month", "Utility", "Congestion Zone", "Load Factor", "kWh/Year", "12 Month", "24 Month"},
		{"Aug 2025", "Oncor", "North", "HI", "100,000-250,000", "4.25", "4.40"},
	}
	path := writeWorkbook(t, map[string][][]string{"Sheet1": grid})

	// Freepoint workbooks are loaded from their first sheet
	table, err := (&Freepoint{}).Load(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	row := table.Rows[0]
	assert.Equal(t, "August 2025", row.StartMonth)
	assert.Equal(t, "oncor", row.Utility)
	assert.Equal(t, "100,000-250,000", row.Field("kWh/Year"))
	assert.Equal(t, "4.25", row.Field("12 Month"))
}

func TestFreepointOffers(t *testing.T) {
	ctx := context.Background()
	rows := []types.Row{
		{Fields: map[string]string{
			"kWh/Year": "100,000-250,000", "12 Month": "4.25", "24 Month": "4.40", "36 Month": "0",
		}},
		{Fields: map[string]string{
			"kWh/Year": "0-100,000", "12 Month": "5.00",
		}},
	}

	t.Run("only rows in the selected bucket are priced", func(t *testing.T) {
		results, err := (&Freepoint{}).Offers(ctx, "Freepoint", rows, types.PriceRequest{AnnualVolume: 150_000})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, types.PriceResult{Rep: "Freepoint", Term: 12, PriceCentsPerKWH: 4.25}, results[0])
		assert.Equal(t, types.PriceResult{Rep: "Freepoint", Term: 24, PriceCentsPerKWH: 4.4}, results[1])
	})

	t.Run("low bucket", func(t *testing.T) {
		results, err := (&Freepoint{}).Offers(ctx, "Freepoint", rows, types.PriceRequest{AnnualVolume: 99_999})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 5.0, results[0].PriceCentsPerKWH)
	})

	t.Run("no rows in the top bucket", func(t *testing.T) {
		results, err := (&Freepoint{}).Offers(ctx, "Freepoint", rows, types.PriceRequest{AnnualVolume: 1_000_000})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("non-positive prices are never emitted", func(t *testing.T) {
		rows := []types.Row{
			{Fields: map[string]string{"kWh/Year": "0-100,000", "12 Month": "0", "24 Month": "-1"}},
		}
		results, err := (&Freepoint{}).Offers(ctx, "Freepoint", rows, types.PriceRequest{AnnualVolume: 1})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
