package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/store"
)

const fundingCSV = `company_name,event_type,amount_usd,announced_date,source
Acme Labs,seed,2000000,2026-05-01,crunchbase
Glow Co,series_a,12000000,2026-04-15,press
`

func TestImportFunding(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "funding.db")})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	res, err := importFunding(ctx, st, strings.NewReader(fundingCSV))
	require.NoError(t, err)
	assert.Equal(t, &fundingImportResult{Read: 2, Inserted: 2}, res)

	res, err = importFunding(ctx, st, strings.NewReader(fundingCSV))
	require.NoError(t, err)
	assert.Equal(t, &fundingImportResult{Read: 2, Inserted: 0, Duplicates: 2}, res)
}

func TestImportFunding_BadCSV(t *testing.T) {
	_, err := importFunding(context.Background(), nil, strings.NewReader("company_name,announced_date\nAcme,someday\n"))
	assert.Error(t, err)
}

type failingInserter struct{}

func (failingInserter) InsertFundingEvents(context.Context, []model.FundingEvent) (int, error) {
	return 0, errors.New("database is locked")
}

func TestImportFunding_StoreError(t *testing.T) {
	_, err := importFunding(context.Background(), failingInserter{}, strings.NewReader(fundingCSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}
