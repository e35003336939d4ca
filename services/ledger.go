package services

import (
	"context"
	"encoding/json"
	"time"

	"gamification-engine/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LedgerEntry describes one star movement. Amount is always positive.
type LedgerEntry struct {
	Amount      int64
	Reason      string
	Description string
	Metadata    map[string]any
	At          time.Time
}

// StarLedger is the only code path that changes User.Stars. Every call writes
// exactly one StarTransaction in the caller's transaction, so the balance always
// equals credits minus debits.
type StarLedger struct{}

// Credit adds stars to u (which the caller has locked) and logs the entry.
func (l *StarLedger) Credit(tx *gorm.DB, u *models.User, e LedgerEntry) (*models.StarTransaction, error) {
	if e.Amount <= 0 {
		return nil, invalid("credit amount must be positive, got %d", e.Amount)
	}

	res := tx.Model(&models.User{}).
		Where("id = ?", u.ID).
		Update("stars", gorm.Expr("stars + ?", e.Amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, notFound("user", u.ID)
	}

	balance, err := readBalance(tx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Stars = balance
	return l.append(tx, u, models.StarCredit, e)
}

// Debit removes stars from u. The balance is re-read inside the transaction and
// the update is guarded so it can never go negative.
func (l *StarLedger) Debit(tx *gorm.DB, u *models.User, e LedgerEntry) (*models.StarTransaction, error) {
	if e.Amount <= 0 {
		return nil, invalid("debit amount must be positive, got %d", e.Amount)
	}

	balance, err := readBalance(tx, u.ID)
	if err != nil {
		return nil, err
	}
	if balance < e.Amount {
		u.Stars = balance
		return nil, insufficient(balance, e.Amount)
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND stars >= ?", u.ID, e.Amount).
		Update("stars", gorm.Expr("stars - ?", e.Amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, insufficient(balance, e.Amount)
	}

	u.Stars = balance - e.Amount
	return l.append(tx, u, models.StarDebit, e)
}

func (l *StarLedger) append(tx *gorm.DB, u *models.User, typ models.StarTransactionType, e LedgerEntry) (*models.StarTransaction, error) {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	entry := models.StarTransaction{
		UserID:       u.ID,
		Amount:       e.Amount,
		Type:         typ,
		Reason:       e.Reason,
		Description:  e.Description,
		BalanceAfter: u.Stars,
		CreatedAt:    at,
	}
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, err
		}
		entry.Metadata = datatypes.JSON(raw)
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func readBalance(tx *gorm.DB, userID string) (int64, error) {
	var balance int64
	err := tx.Model(&models.User{}).Select("stars").Where("id = ?", userID).Scan(&balance).Error
	return balance, err
}

// RecentTransactions returns the newest ledger entries for a user.
func (e *Engine) RecentTransactions(ctx context.Context, userID string, limit int) ([]models.StarTransaction, error) {
	if limit <= 0 || limit > e.Economy.TransactionLimit {
		limit = e.Economy.TransactionLimit
	}
	var out []models.StarTransaction
	err := e.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// LedgerCursor marks a position in one user's ledger. IDs lists the entries
// already seen at exactly At, so later entries sharing that timestamp still
// come through.
type LedgerCursor struct {
	At  time.Time
	IDs []string
}

// Advance moves the cursor past entries, which must be ordered oldest first.
func (c *LedgerCursor) Advance(entries []models.StarTransaction) {
	for _, entry := range entries {
		if entry.CreatedAt.After(c.At) {
			c.At = entry.CreatedAt
			c.IDs = nil
		}
		if entry.CreatedAt.Equal(c.At) {
			c.IDs = append(c.IDs, entry.ID)
		}
	}
}

// TransactionsSince returns the entries after cursor, oldest first.
func (e *Engine) TransactionsSince(ctx context.Context, userID string, cursor LedgerCursor) ([]models.StarTransaction, error) {
	q := e.DB.WithContext(ctx).Where("user_id = ? AND created_at >= ?", userID, cursor.At)
	if len(cursor.IDs) > 0 {
		q = q.Where("id NOT IN ?", cursor.IDs)
	}
	var out []models.StarTransaction
	err := q.Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// LedgerHead returns a cursor positioned after the user's newest entry.
func (e *Engine) LedgerHead(ctx context.Context, userID string) (LedgerCursor, error) {
	cursor := LedgerCursor{At: e.now()}
	recent, err := e.RecentTransactions(ctx, userID, 1)
	if err != nil || len(recent) == 0 {
		return cursor, err
	}
	cursor.At = recent[0].CreatedAt
	tied, err := e.TransactionsSince(ctx, userID, cursor)
	if err != nil {
		return cursor, err
	}
	cursor.Advance(tied)
	return cursor, nil
}

// LedgerSum returns credits minus debits for a user; it equals User.Stars.
func (e *Engine) LedgerSum(ctx context.Context, userID string) (int64, error) {
	var rows []models.StarTransaction
	if err := e.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return 0, err
	}
	var sum int64
	for _, r := range rows {
		sum += r.Signed()
	}
	return sum, nil
}
