package services

import (
	"context"
	"fmt"

	contextutil "turnover/internal/context"
	"turnover/internal/database"

	logger "github.com/Bparsons0904/goLogger"
)

// TransactionService handles database transactions using context injection
type TransactionService struct {
	db  database.DB
	log logger.Logger
}

func NewTransactionService(db database.DB) *TransactionService {
	return &TransactionService{
		db:  db,
		log: logger.New("TransactionService"),
	}
}

// Execute runs fn within a database transaction. The transaction travels in
// the context handed to fn, so repositories called with it join the
// transaction. Commit or rollback follows fn's result. Panics are converted to
// errors unless rollback fails, which crashes the service for data safety.
func (ts *TransactionService) Execute(
	ctx context.Context,
	fn func(ctx context.Context) error,
) (err error) {
	log := ts.log.Function("Execute")

	if _, ok := contextutil.GetTransaction(ctx); ok {
		return fn(ctx)
	}

	tx := ts.db.SQLWithContext(ctx).Begin()
	if tx.Error != nil {
		return log.Err("failed to begin transaction", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			panicErr := log.ErrMsg("panic during transaction: " + fmt.Sprintf("%v", r))

			if rollbackErr := tx.Rollback().Error; rollbackErr != nil {
				log.Er("CRITICAL: failed to rollback after panic", rollbackErr, "panic", r)
				panic(
					fmt.Sprintf(
						"transaction rollback failed: %v (original panic: %v)",
						rollbackErr,
						r,
					),
				)
			}

			log.Info("transaction rolled back successfully after panic")
			err = panicErr
		}
	}()

	if err = fn(contextutil.WithTransaction(ctx, tx)); err != nil {
		if rollbackErr := tx.Rollback().Error; rollbackErr != nil {
			log.Er("CRITICAL: failed to rollback after function error", rollbackErr, "originalError", err)
			return log.Error("transaction rollback failed", "rollbackError", rollbackErr, "originalError", err)
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return log.Err("failed to commit transaction", err)
	}

	return nil
}
