//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"slipdesk/internal/slip/models"
	"slipdesk/internal/slip/store"
	id "slipdesk/pkg/domain"
	"slipdesk/pkg/platform/sentinel"
	"slipdesk/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
	now   time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgresStore(s.pg.Pool)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
	s.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background(), "deposit_slips"))
}

func (s *PostgresStoreSuite) newSlip(code, account string) *models.DepositSlip {
	return &models.DepositSlip{
		ID:        id.NewSlipID(),
		Code:      code,
		Status:    models.StatusCreated,
		CreatedAt: s.now,
		ExpiresAt: s.now.Add(time.Hour),
		Payload: models.Payload{
			Type:            models.TypeCashDeposit,
			CustomerAccount: account,
			Amount:          250_000,
		},
	}
}

func (s *PostgresStoreSuite) TestCreateAndRoundTrip() {
	ctx := context.Background()
	slip := s.newSlip("DRID-20250601-AB12CD", "ACC-1")
	s.Require().NoError(s.store.Create(ctx, slip))

	found, err := s.store.FindByCode(ctx, slip.Code)
	s.Require().NoError(err)
	s.Equal(slip.Code, found.Code)
	s.Equal(models.StatusCreated, found.Status)
	s.Equal(int64(1), found.Version)
	s.Equal(slip.Payload.Amount, found.Payload.Amount)
}

func (s *PostgresStoreSuite) TestCreateDuplicateCode() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newSlip("DRID-20250601-AB12CD", "ACC-1")))

	err := s.store.Create(ctx, s.newSlip("DRID-20250601-AB12CD", "ACC-2"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestExecuteVersionGuard() {
	ctx := context.Background()
	slip := s.newSlip("DRID-20250601-AB12CD", "ACC-1")
	s.Require().NoError(s.store.Create(ctx, slip))

	updated, err := s.store.Execute(ctx, slip.Code, func(d *models.DepositSlip) error {
		d.Status = models.StatusRetrieved
		d.RetrievedBranch = "KHI-001"
		return nil
	})
	s.Require().NoError(err)
	s.Equal(int64(2), updated.Version)

	found, err := s.store.FindByCode(ctx, slip.Code)
	s.Require().NoError(err)
	s.Equal(models.StatusRetrieved, found.Status)
}

func (s *PostgresStoreSuite) TestConcurrentExecuteLosesNoWrites() {
	ctx := context.Background()
	slip := s.newSlip("DRID-20250601-AB12CD", "ACC-1")
	s.Require().NoError(s.store.Create(ctx, slip))

	// Each writer retries on conflict until its increment lands.
	const writers = 10
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			for {
				_, err := s.store.Execute(ctx, slip.Code, func(d *models.DepositSlip) error {
					d.ValidityMinutes++
					return nil
				})
				if err == nil {
					return nil
				}
				if !errors.Is(err, sentinel.ErrConflict) {
					return err
				}
			}
		})
	}
	s.Require().NoError(g.Wait())

	found, err := s.store.FindByCode(ctx, slip.Code)
	s.Require().NoError(err)
	s.Equal(writers, found.ValidityMinutes)
	s.Equal(int64(writers+1), found.Version)
}

func (s *PostgresStoreSuite) TestFindActiveByAccount() {
	ctx := context.Background()
	slip := s.newSlip("DRID-20250601-AB12CD", "ACC-1")
	s.Require().NoError(s.store.Create(ctx, slip))

	found, err := s.store.FindActiveByAccount(ctx, "ACC-1", models.TypeCashDeposit)
	s.Require().NoError(err)
	s.Equal(slip.Code, found.Code)

	_, err = s.store.Execute(ctx, slip.Code, func(d *models.DepositSlip) error {
		d.Status = models.StatusCancelled
		return nil
	})
	s.Require().NoError(err)

	_, err = s.store.FindActiveByAccount(ctx, "ACC-1", models.TypeCashDeposit)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListExpirable() {
	ctx := context.Background()
	stale := s.newSlip("DRID-20250601-AB12CD", "ACC-1")
	s.Require().NoError(s.store.Create(ctx, stale))

	fresh := s.newSlip("DRID-20250601-EF34GH", "ACC-2")
	fresh.ExpiresAt = s.now.Add(3 * time.Hour)
	s.Require().NoError(s.store.Create(ctx, fresh))

	codes, err := s.store.ListExpirable(ctx, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal([]string{stale.Code}, codes)
}
