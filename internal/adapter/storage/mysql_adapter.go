package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nursace/storefront/internal/core/domain"
	"github.com/nursace/storefront/internal/port"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// RunMigrations applies the schema migrations from dir.
func (m *MySQLAdapter) RunMigrations(dir string) error {
	driver, err := migratemysql.WithInstance(m.db, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	mig, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "mysql", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// ownerCond builds the WHERE fragment selecting rows by cart/order owner.
// Callers guarantee the owner is valid (exactly one id set).
func ownerCond(owner domain.Owner) (string, any) {
	if owner.UserID != nil {
		return "user_id = ?", owner.UserID.String()
	}
	return "session_id = ?", owner.SessionID.String()
}

type checkoutLine struct {
	productID   int64
	quantity    int
	price       decimal.Decimal
	display     bool
	minQuantity sql.NullInt64
}

func (m *MySQLAdapter) CheckoutCart(ctx context.Context, draft port.CheckoutDraft) (*port.CheckoutResult, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Ordering by product id gives every checkout the same lock order on
	// the product rows, so overlapping multi-line carts cannot deadlock.
	cond, arg := ownerCond(draft.Owner)
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.product_id, ci.quantity, p.retail_price, p.display, p.min_quantity_for_order
		FROM cart_items ci
		JOIN products p ON p.good_id = ci.product_id
		WHERE ci.`+cond+`
		ORDER BY ci.product_id
		FOR UPDATE`, arg)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var lines []checkoutLine
	for rows.Next() {
		var l checkoutLine
		if err := rows.Scan(&l.productID, &l.quantity, &l.price, &l.display, &l.minQuantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	total := decimal.Zero
	for _, l := range lines {
		if !l.display {
			return nil, fmt.Errorf("product %d: %w", l.productID, domain.ErrProductUnavailable)
		}
		if l.minQuantity.Valid && int64(l.quantity) < l.minQuantity.Int64 {
			return nil, fmt.Errorf("product %d: %w", l.productID, domain.ErrBelowMinimumOrder)
		}
		if err := reserveStock(ctx, tx, l.productID, l.quantity); err != nil {
			return nil, err
		}
		total = total.Add(l.price.Mul(decimal.NewFromInt(int64(l.quantity))))
	}

	infoID, err := insertOrderInfo(ctx, tx, draft)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (user_id, session_id, info_id, total_price, status_id, created_at)
		VALUES (?, ?, ?, ?, (SELECT id FROM order_statuses WHERE name = 'new'), NOW())`,
		uuidArg(draft.Owner.UserID), uuidArg(draft.Owner.SessionID), infoID, total,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("order id: %w", err)
	}

	for _, l := range lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES (?, ?, ?, ?)`,
			orderID, l.productID, l.quantity, l.price,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE `+cond, arg); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit checkout: %w", err)
	}
	return &port.CheckoutResult{OrderID: orderID, Total: total}, nil
}

// reserveStock decrements warehouse_quantity in one guarded statement so two
// concurrent checkouts can never both pass the stock check. MySQL applies the
// SET clauses left to right, so the display flag sees the decremented value.
func reserveStock(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET warehouse_quantity = warehouse_quantity - ?,
		    display = IF(warehouse_quantity = 0, 0, display)
		WHERE good_id = ? AND warehouse_quantity >= ?`,
		qty, productID, qty,
	)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("product %d: %w", productID, domain.ErrInsufficientStock)
	}
	return nil
}

// restoreStock returns reserved units to the shelf. The display clause runs
// before the increment, so only a stock-out hide is undone; a product hidden
// while it still had stock stays hidden.
func restoreStock(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products
		SET display = IF(warehouse_quantity = 0, 1, display),
		    warehouse_quantity = warehouse_quantity + ?
		WHERE good_id = ?`,
		qty, productID,
	)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

func insertOrderInfo(ctx context.Context, tx *sql.Tx, draft port.CheckoutDraft) (int64, error) {
	var infoUser, infoSession any
	if draft.SaveInfo {
		infoUser = uuidArg(draft.Owner.UserID)
		infoSession = uuidArg(draft.Owner.SessionID)
	}
	info := draft.Info
	res, err := tx.ExecContext(ctx, `
		INSERT INTO order_infos
			(user_id, session_id, email, first_name, last_name, address_line1,
			 city, region, postal_code, phone, order_note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())`,
		infoUser, infoSession, nullStr(info.Email), info.FirstName, info.LastName,
		info.AddressLine1, info.City, info.Region, info.PostalCode, info.Phone,
		nullStr(info.OrderNote),
	)
	if err != nil {
		return 0, fmt.Errorf("insert order info: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("order info id: %w", err)
	}
	return id, nil
}

func (m *MySQLAdapter) MarkPaid(ctx context.Context, orderID int64) (bool, error) {
	res, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status_id = (SELECT id FROM order_statuses WHERE name = 'paid')
		WHERE id = ? AND status_id = (SELECT id FROM order_statuses WHERE name = 'new')`,
		orderID,
	)
	if err != nil {
		return false, fmt.Errorf("mark paid: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 1 {
		return true, nil
	}

	// Lost the CAS: find out whether the order exists at all.
	if _, err := m.orderStatus(ctx, m.db, orderID); err != nil {
		return false, err
	}
	return false, nil
}

func (m *MySQLAdapter) CancelOrder(ctx context.Context, orderID int64) (domain.OrderStatus, bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status_id = (SELECT id FROM order_statuses WHERE name = 'cancelled')
		WHERE id = ? AND status_id = (SELECT id FROM order_statuses WHERE name = 'new')`,
		orderID,
	)
	if err != nil {
		return "", false, fmt.Errorf("cancel order: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		status, err := m.orderStatus(ctx, tx, orderID)
		if err != nil {
			return "", false, err
		}
		return status, false, nil
	}

	// The restore pass shares the transaction with the winning transition,
	// so it runs at most once per order.
	items, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity FROM order_items
		WHERE order_id = ?
		ORDER BY product_id`, orderID)
	if err != nil {
		return "", false, fmt.Errorf("load order items: %w", err)
	}
	type restoreItem struct {
		productID int64
		quantity  int
	}
	var toRestore []restoreItem
	for items.Next() {
		var it restoreItem
		if err := items.Scan(&it.productID, &it.quantity); err != nil {
			items.Close()
			return "", false, fmt.Errorf("scan order item: %w", err)
		}
		toRestore = append(toRestore, it)
	}
	if err := items.Close(); err != nil {
		return "", false, fmt.Errorf("read order items: %w", err)
	}
	for _, it := range toRestore {
		if err := restoreStock(ctx, tx, it.productID, it.quantity); err != nil {
			return "", false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit cancel: %w", err)
	}
	return domain.OrderStatusCancelled, true, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (m *MySQLAdapter) orderStatus(ctx context.Context, q queryer, orderID int64) (domain.OrderStatus, error) {
	var name string
	err := q.QueryRowContext(ctx, `
		SELECT s.name FROM orders o
		JOIN order_statuses s ON s.id = o.status_id
		WHERE o.id = ?`, orderID,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query order status: %w", err)
	}
	return domain.OrderStatus(name), nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	var (
		o          domain.Order
		userID     sql.NullString
		sessionID  sql.NullString
		statusName string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT o.id, o.user_id, o.session_id, o.info_id, o.total_price, s.name, o.created_at
		FROM orders o
		JOIN order_statuses s ON s.id = o.status_id
		WHERE o.id = ?`, orderID,
	).Scan(&o.ID, &userID, &sessionID, &o.InfoID, &o.TotalPrice, &statusName, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o.UserID = parseUUID(userID)
	o.SessionID = parseUUID(sessionID)
	o.Status = domain.OrderStatus(statusName)

	info, err := m.orderInfo(ctx, o.InfoID)
	if err != nil {
		return nil, err
	}
	o.Info = info

	items, err := m.orderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (m *MySQLAdapter) orderInfo(ctx context.Context, infoID int64) (*domain.OrderInfo, error) {
	var (
		info      domain.OrderInfo
		userID    sql.NullString
		sessionID sql.NullString
		email     sql.NullString
		note      sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, email, first_name, last_name, address_line1,
		       city, region, postal_code, phone, order_note, created_at
		FROM order_infos WHERE id = ?`, infoID,
	).Scan(&info.ID, &userID, &sessionID, &email, &info.FirstName, &info.LastName,
		&info.AddressLine1, &info.City, &info.Region, &info.PostalCode, &info.Phone,
		&note, &info.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query order info: %w", err)
	}
	info.UserID = parseUUID(userID)
	info.SessionID = parseUUID(sessionID)
	info.Email = email.String
	info.OrderNote = note.String
	return &info, nil
}

func (m *MySQLAdapter) orderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, COALESCE(p.good_name, '')
		FROM order_items oi
		LEFT JOIN products p ON p.good_id = oi.product_id
		WHERE oi.order_id = ?
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.ProductName); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, owner domain.Owner, sort domain.OrderSort) ([]domain.Order, error) {
	cond, arg := ownerCond(owner)
	rows, err := m.db.QueryContext(ctx, `
		SELECT o.id, o.user_id, o.session_id, o.info_id, o.total_price, s.name, o.created_at
		FROM orders o
		JOIN order_statuses s ON s.id = o.status_id
		WHERE o.`+cond+orderBy(sort), arg)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o          domain.Order
			userID     sql.NullString
			sessionID  sql.NullString
			statusName string
		)
		if err := rows.Scan(&o.ID, &userID, &sessionID, &o.InfoID, &o.TotalPrice, &statusName, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.UserID = parseUUID(userID)
		o.SessionID = parseUUID(sessionID)
		o.Status = domain.OrderStatus(statusName)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// orderBy whitelists the sortable columns; anything else falls back to id.
func orderBy(sort domain.OrderSort) string {
	dir := func(d string) (string, bool) {
		switch d {
		case "asc":
			return "ASC", true
		case "desc":
			return "DESC", true
		}
		return "", false
	}
	if d, ok := dir(sort.ByID); ok {
		return " ORDER BY o.id " + d
	}
	if d, ok := dir(sort.ByPrice); ok {
		return " ORDER BY o.total_price " + d
	}
	if d, ok := dir(sort.ByDate); ok {
		return " ORDER BY o.created_at " + d
	}
	return " ORDER BY o.id"
}

func (m *MySQLAdapter) LastOrderInfo(ctx context.Context, userID uuid.UUID) (*domain.OrderInfo, error) {
	var infoID int64
	err := m.db.QueryRowContext(ctx, `
		SELECT id FROM order_infos
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, userID.String(),
	).Scan(&infoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderInfoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query last order info: %w", err)
	}
	return m.orderInfo(ctx, infoID)
}

func (m *MySQLAdapter) UpsertCartLine(ctx context.Context, line domain.CartLine) (*domain.CartLine, error) {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, session_id, product_id, quantity, added_at)
		VALUES (?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		uuidArg(line.UserID), uuidArg(line.SessionID), line.ProductID, line.Quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert cart line: %w", err)
	}

	owner := domain.Owner{UserID: line.UserID, SessionID: line.SessionID}
	cond, arg := ownerCond(owner)
	var (
		out       domain.CartLine
		userID    sql.NullString
		sessionID sql.NullString
	)
	err = m.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, product_id, quantity, added_at
		FROM cart_items
		WHERE `+cond+` AND product_id = ?`, arg, line.ProductID,
	).Scan(&out.ID, &userID, &sessionID, &out.ProductID, &out.Quantity, &out.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("reload cart line: %w", err)
	}
	out.UserID = parseUUID(userID)
	out.SessionID = parseUUID(sessionID)
	return &out, nil
}

func (m *MySQLAdapter) CartLines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	cond, arg := ownerCond(owner)
	rows, err := m.db.QueryContext(ctx, `
		SELECT ci.id, ci.user_id, ci.session_id, ci.product_id, ci.quantity, ci.added_at,
		       p.good_id, p.good_name, p.retail_price, p.warehouse_quantity, p.display, p.min_quantity_for_order
		FROM cart_items ci
		JOIN products p ON p.good_id = ci.product_id
		WHERE ci.`+cond+`
		ORDER BY ci.id`, arg)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var (
			l         domain.CartLine
			p         domain.ProductStock
			userID    sql.NullString
			sessionID sql.NullString
			minQty    sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &userID, &sessionID, &l.ProductID, &l.Quantity, &l.AddedAt,
			&p.GoodID, &p.GoodName, &p.RetailPrice, &p.WarehouseQuantity, &p.Display, &minQty); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		l.UserID = parseUUID(userID)
		l.SessionID = parseUUID(sessionID)
		if minQty.Valid {
			v := int(minQty.Int64)
			p.MinQuantityForOrder = &v
		}
		l.Product = &p
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (m *MySQLAdapter) CountCartLines(ctx context.Context, owner domain.Owner) (int, error) {
	cond, arg := ownerCond(owner)
	var count int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cart_items WHERE `+cond, arg,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count cart lines: %w", err)
	}
	return count, nil
}

func (m *MySQLAdapter) SetCartQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	cond, arg := ownerCond(owner)
	res, err := m.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = ? WHERE `+cond+` AND product_id = ?`,
		quantity, arg, productID,
	)
	if err != nil {
		return fmt.Errorf("update cart quantity: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return domain.ErrCartLineNotFound
	}
	return nil
}

func (m *MySQLAdapter) RemoveCartLine(ctx context.Context, owner domain.Owner, productID int64) error {
	cond, arg := ownerCond(owner)
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE `+cond+` AND product_id = ?`, arg, productID,
	)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return domain.ErrCartLineNotFound
	}
	return nil
}

func (m *MySQLAdapter) ProductStock(ctx context.Context, productID int64) (*domain.ProductStock, error) {
	var (
		p      domain.ProductStock
		minQty sql.NullInt64
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT good_id, good_name, retail_price, warehouse_quantity, display, min_quantity_for_order
		FROM products WHERE good_id = ?`, productID,
	).Scan(&p.GoodID, &p.GoodName, &p.RetailPrice, &p.WarehouseQuantity, &p.Display, &minQty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product stock: %w", err)
	}
	if minQty.Valid {
		v := int(minQty.Int64)
		p.MinQuantityForOrder = &v
	}
	return &p, nil
}

func uuidArg(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func parseUUID(s sql.NullString) *uuid.UUID {
	if !s.Valid {
		return nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil
	}
	return &id
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
