package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/podari/internal/model"
)

const productSelect = `SELECT p.id, p.name, p.description, p.state, p.purchased_at, p.images,
        p.owner_id, p.receiver_id, p.available, p.donated_at, p.created_at, p.updated_at,
        o.id, o.name, o.email, o.phone,
        r.id, r.name, r.email, r.phone
 FROM products p
 LEFT JOIN users o ON o.id = p.owner_id AND o.deleted_at IS NULL
 LEFT JOIN users r ON r.id = p.receiver_id AND r.deleted_at IS NULL`

// Listing order is newest first; rowid breaks ties between equal timestamps.
const productOrder = ` ORDER BY p.created_at DESC, p.rowid DESC`

type scanner interface {
	Scan(dest ...any) error
}

// InsertProduct stores a new product. ID and timestamps are assigned here.
func InsertProduct(ctx context.Context, db *sql.DB, p *model.Product) error {
	images, err := encodeImages(p.Images)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	p.ID = model.NewID()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err = db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, state, purchased_at, images,
		                       owner_id, receiver_id, available, donated_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.State, p.PurchasedAt.UTC(), images,
		p.OwnerID, p.ReceiverID, p.Available, utcPtr(p.DonatedAt), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting product: %w", err)
	}
	return nil
}

// GetProduct returns a product by ID. With expand set, the owner and receiver
// profiles are attached when those users still exist.
func GetProduct(ctx context.Context, db *sql.DB, id string, expand bool) (*model.Product, error) {
	p, err := scanProduct(db.QueryRowContext(ctx, productSelect+` WHERE p.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	if !expand {
		p.Owner, p.Receiver = nil, nil
	}
	return p, nil
}

// ListProducts returns one page of products, newest first, with relations
// expanded.
func ListProducts(ctx context.Context, db *sql.DB, limit, offset int) ([]model.Product, error) {
	rows, err := db.QueryContext(ctx,
		productSelect+productOrder+` LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// ListProductsMatching returns every product matching the filter, newest
// first, with relations expanded.
func ListProductsMatching(ctx context.Context, db *sql.DB, filter model.ProductFilter) ([]model.Product, error) {
	var where []string
	var args []any
	if filter.OwnerID != "" {
		where = append(where, "p.owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.ReceiverID != "" {
		where = append(where, "p.receiver_id = ?")
		args = append(args, filter.ReceiverID)
	}

	query := productSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	rows, err := db.QueryContext(ctx, query+productOrder, args...)
	if err != nil {
		return nil, fmt.Errorf("listing matching products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// SaveProduct writes the business fields of an existing product. Owner,
// receiver and lifecycle columns are left untouched. Returns false when no
// product has the given ID.
func SaveProduct(ctx context.Context, db *sql.DB, p *model.Product) (bool, error) {
	images, err := encodeImages(p.Images)
	if err != nil {
		return false, err
	}

	p.UpdatedAt = time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, state = ?, purchased_at = ?, images = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Description, p.State, p.PurchasedAt.UTC(), images, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return false, fmt.Errorf("saving product: %w", err)
	}
	return affected(result, "saving product")
}

// DeleteProduct removes a product. Returns false when it did not exist.
func DeleteProduct(ctx context.Context, db *sql.DB, id string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting product: %w", err)
	}
	return affected(result, "deleting product")
}

// AssignReceiver sets the receiver of a product in a single conditional
// statement. It only succeeds while the product belongs to ownerID and is
// still available; otherwise it returns false and changes nothing.
func AssignReceiver(ctx context.Context, db *sql.DB, id, ownerID, receiverID string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET receiver_id = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND available = 1`,
		receiverID, time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("assigning receiver: %w", err)
	}
	return affected(result, "assigning receiver")
}

// MarkDonated flips a product to unavailable and stamps the donation time,
// under the same conditions as AssignReceiver. Of several concurrent calls
// for one product at most one returns true.
func MarkDonated(ctx context.Context, db *sql.DB, id, ownerID string, at time.Time) (bool, error) {
	at = at.UTC()
	result, err := db.ExecContext(ctx,
		`UPDATE products SET available = 0, donated_at = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND available = 1`,
		at, at, id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("marking product donated: %w", err)
	}
	return affected(result, "marking product donated")
}

func affected(result sql.Result, op string) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func scanProducts(rows *sql.Rows) ([]model.Product, error) {
	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func scanProduct(row scanner) (*model.Product, error) {
	p := &model.Product{}
	var images string
	var receiverID sql.NullString
	var owner, receiver nullProfile

	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.State, &p.PurchasedAt, &images,
		&p.OwnerID, &receiverID, &p.Available, &p.DonatedAt, &p.CreatedAt, &p.UpdatedAt,
		&owner.id, &owner.name, &owner.email, &owner.phone,
		&receiver.id, &receiver.name, &receiver.email, &receiver.phone,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return nil, fmt.Errorf("decoding images of product %s: %w", p.ID, err)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if receiverID.Valid {
		p.ReceiverID = &receiverID.String
	}
	p.Owner = owner.profile()
	p.Receiver = receiver.profile()
	return p, nil
}

type nullProfile struct {
	id, name, email, phone sql.NullString
}

func (n nullProfile) profile() *model.UserProfile {
	if !n.id.Valid {
		return nil
	}
	return &model.UserProfile{
		ID:    n.id.String,
		Name:  n.name.String,
		Email: n.email.String,
		Phone: n.phone.String,
	}
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encoding images: %w", err)
	}
	return string(b), nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
