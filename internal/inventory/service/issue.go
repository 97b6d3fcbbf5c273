package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medstock/medstock-backend/internal/inventory/repository"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/messaging"
)

// CreateIssueInput is a stock issue request
type CreateIssueInput struct {
	BatchStockID string
	IssuedBoxes  int
	IssuedDate   time.Time
	Remark       string
	CreatedBy    string
}

// IssueResult is the outcome of a committed stock issue
type IssueResult struct {
	StockIssue     repository.StockIssue `json:"stock_issue"`
	RemainingBoxes int                   `json:"remaining_boxes"`
}

// SuggestFEFO returns non-expired batches of a medicine with stock on hand,
// earliest expiry first. Ties on expiry break by batch number, then row id.
func (s *StockService) SuggestFEFO(ctx context.Context, medicineID string) ([]*BatchView, error) {
	fctx, err := s.ResolveFilterContext(ctx)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.ListFEFOCandidates(ctx, medicineID, fctx.TodayEnd, fefoSuggestLimit)
	if err != nil {
		return nil, err
	}

	medicine, err := s.medicineRepo.GetByID(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	views := make([]*BatchView, 0, len(batches))
	for _, batch := range batches {
		views = append(views, &BatchView{
			BatchStock: *batch,
			Medicine:   MedicineRef{ID: medicine.ID, Name: medicine.Name, Strength: medicine.Strength},
			Flags:      repository.ComputeFlags(batch.ExpiryDate, batch.AvailableBoxes, fctx),
		})
	}
	return views, nil
}

// CreateIssue records an outgoing stock movement against one batch. The
// checks run in order inside one transaction: the batch must exist, must
// not be expired as of today, must cover the quantity, and the issue date
// must not precede the batch's earliest invoice date. The conditional
// decrement is the final authority on sufficiency, so a concurrent issuer
// that empties the batch first turns this request into InsufficientStock.
func (s *StockService) CreateIssue(ctx context.Context, input CreateIssueInput) (*IssueResult, error) {
	todayEnd := repository.EndOfDay(s.now())

	issue := &repository.StockIssue{
		BatchStockID: input.BatchStockID,
		IssuedBoxes:  input.IssuedBoxes,
		IssuedDate:   input.IssuedDate,
		Remark:       input.Remark,
		CreatedBy:    input.CreatedBy,
	}

	var remaining int

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.batchRepo.GetByIDTx(ctx, tx, input.BatchStockID)
		if err != nil {
			return err
		}

		if !batch.ExpiryDate.After(todayEnd) {
			return errors.BatchExpired()
		}

		if batch.AvailableBoxes < input.IssuedBoxes {
			return errors.InsufficientStock()
		}

		identity := repository.BatchIdentity{
			MedicineID: batch.MedicineID,
			Pack:       batch.Pack,
			BatchNo:    batch.BatchNo,
			ExpiryDate: batch.ExpiryDate,
		}
		firstInvoice, found, err := s.receiptRepo.FirstInvoiceDateTx(ctx, tx, identity)
		if err != nil {
			return err
		}
		if found && repository.StartOfDay(input.IssuedDate).Before(repository.StartOfDay(firstInvoice)) {
			return errors.InvalidIssueDate()
		}

		remaining, err = s.batchRepo.ApplyIssueDecrement(ctx, tx, input.BatchStockID, input.IssuedBoxes)
		if err != nil {
			return err
		}

		return s.issueRepo.InsertTx(ctx, tx, issue)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stock_issue_id", issue.ID).
		Str("batch_stock_id", issue.BatchStockID).
		Int("issued_boxes", issue.IssuedBoxes).
		Int("remaining_boxes", remaining).
		Msg("stock issue committed")

	if s.publisher != nil {
		s.publisher.PublishStockIssued(ctx, &messaging.StockIssuedEvent{
			StockIssueID:   issue.ID,
			BatchStockID:   issue.BatchStockID,
			IssuedBoxes:    issue.IssuedBoxes,
			RemainingBoxes: remaining,
			CreatedBy:      issue.CreatedBy,
		})
	}

	return &IssueResult{StockIssue: *issue, RemainingBoxes: remaining}, nil
}

// IssueView is an issue enriched with its batch, medicine and issuer
type IssueView struct {
	repository.StockIssue
	Medicine      MedicineRef `json:"medicine"`
	Pack          string      `json:"pack"`
	BatchNo       string      `json:"batch_no"`
	ExpiryDate    time.Time   `json:"expiry_date"`
	CreatedByName string      `json:"created_by_name"`
}

// ListIssues returns a page of stock issues, newest first
func (s *StockService) ListIssues(ctx context.Context, filter repository.IssueListFilter) ([]*IssueView, int64, error) {
	rows, total, err := s.issueRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	views := make([]*IssueView, 0, len(rows))
	for _, row := range rows {
		views = append(views, &IssueView{
			StockIssue: row.StockIssue,
			Medicine: MedicineRef{
				ID:       row.MedicineID,
				Name:     row.MedicineName,
				Strength: row.MedicineStrength,
			},
			Pack:          row.Pack,
			BatchNo:       row.BatchNo,
			ExpiryDate:    row.ExpiryDate,
			CreatedByName: row.CreatedByName,
		})
	}
	return views, total, nil
}
