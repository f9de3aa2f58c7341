package tests

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/nursace/storefront/internal/adapter/storage"
	"github.com/nursace/storefront/internal/core/domain"
	"github.com/nursace/storefront/internal/core/service"
	"github.com/nursace/storefront/internal/port"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	cache   *storage.RedisAdapter
	store   *storage.MySQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("STOREFRONT_REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("STOREFRONT_MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/storefront?parseTime=true&multiStatements=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	return &testEnv{
		redis: rdb,
		mysql: db,
		cache: storage.NewRedisAdapter(rdb),
		store: storage.NewMySQLAdapter(db),
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

type stubGateway struct{}

func (stubGateway) InitPayment(ctx context.Context, req port.PaymentInit) (string, error) {
	return fmt.Sprintf("https://pay.example.com/r/%d", req.OrderID), nil
}

func (stubGateway) VerifyCallback(scriptName string, form url.Values) bool {
	return true
}

func (e *testEnv) seedProduct(t *testing.T, id int64, qty int) {
	t.Helper()
	_, err := e.mysql.ExecContext(context.Background(), `
		INSERT INTO products (good_id, good_name, retail_price, warehouse_quantity, display)
		VALUES (?, 'Integration boots', 750.00, ?, 1)
		ON DUPLICATE KEY UPDATE warehouse_quantity = VALUES(warehouse_quantity),
		                        display = 1, min_quantity_for_order = NULL`,
		id, qty)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func (e *testEnv) productQty(t *testing.T, id int64) int {
	t.Helper()
	var qty int
	err := e.mysql.QueryRowContext(context.Background(),
		`SELECT warehouse_quantity FROM products WHERE good_id = ?`, id).Scan(&qty)
	if err != nil {
		t.Fatalf("read product: %v", err)
	}
	return qty
}

func checkoutRequest() service.CheckoutRequest {
	sessionID := uuid.New()
	return service.CheckoutRequest{
		Owner: domain.Owner{SessionID: &sessionID},
		Info: domain.OrderInfo{
			Email:        "aibek@example.com",
			FirstName:    "Aibek",
			LastName:     "Toktogulov",
			AddressLine1: "Chuy 1",
			City:         "Bishkek",
			Region:       "Chuy",
			PostalCode:   "720000",
			Phone:        "+996700000000",
		},
	}
}

func (e *testEnv) addLine(t *testing.T, owner domain.Owner, productID int64, qty int) {
	t.Helper()
	_, err := e.store.UpsertCartLine(context.Background(), domain.CartLine{
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		ProductID: productID,
		Quantity:  qty,
	})
	if err != nil {
		t.Fatalf("add cart line: %v", err)
	}
}

// Concurrent checkouts over scarce stock: stock admits exactly as many orders
// as there are units, and no unit is sold twice.
func TestIntegration_ConcurrentCheckout(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	const productID = 910001
	initialStock := 3
	totalRequests := 10

	env.seedProduct(t, productID, initialStock)
	checkoutSvc := service.NewCheckoutService(env.store, stubGateway{})

	reqs := make([]service.CheckoutRequest, totalRequests)
	for i := range reqs {
		reqs[i] = checkoutRequest()
		env.addLine(t, reqs[i].Owner, productID, 1)
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(req service.CheckoutRequest) {
			defer wg.Done()
			if _, err := checkoutSvc.Checkout(ctx, req); err == nil {
				successCount.Add(1)
			}
		}(reqs[i])
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successful checkouts, got %d", initialStock, successCount.Load())
	}
	if qty := env.productQty(t, productID); qty != 0 {
		t.Errorf("expected stock 0, got %d", qty)
	}
}

// Full payment flow: checkout, success callback flips the order to paid and
// schedules exactly one receipt; redeliveries are absorbed.
func TestIntegration_PaymentResultIdempotent(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	const productID = 910002
	env.seedProduct(t, productID, 10)

	checkoutSvc := service.NewCheckoutService(env.store, stubGateway{})
	orderSvc := service.NewOrderService(env.store, env.cache, 16)
	defer orderSvc.Close()

	req := checkoutRequest()
	env.addLine(t, req.Owner, productID, 2)
	resp, err := checkoutSvc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if reply := orderSvc.CheckPayment(ctx, resp.OrderID, "1500.00"); !reply.OK {
		t.Fatalf("check rejected: %+v", reply)
	}

	result := service.PaymentResult{
		OrderID:    resp.OrderID,
		PaymentID:  uuid.NewString(),
		Amount:     "1500.00",
		ResultCode: "1",
	}
	for i := 0; i < 3; i++ {
		if reply := orderSvc.HandlePaymentResult(ctx, result); !reply.OK {
			t.Fatalf("delivery %d rejected: %+v", i, reply)
		}
	}

	order, err := orderSvc.GetOrder(ctx, resp.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Errorf("expected paid, got %s", order.Status)
	}
	if !order.TotalPrice.Equal(decimal.RequireFromString("1500.00")) {
		t.Errorf("expected total 1500.00, got %s", order.TotalPrice)
	}

	receipts := 0
	for {
		select {
		case <-orderSvc.ReceiptQueue():
			receipts++
			continue
		default:
		}
		break
	}
	if receipts != 1 {
		t.Errorf("expected exactly one receipt, got %d", receipts)
	}

	// Paid is terminal for stock too.
	if qty := env.productQty(t, productID); qty != 8 {
		t.Errorf("expected stock 8, got %d", qty)
	}
}

// A failure verdict cancels the order and puts the reserved units back.
func TestIntegration_PaymentFailureRestoresStock(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	const productID = 910003
	env.seedProduct(t, productID, 5)

	checkoutSvc := service.NewCheckoutService(env.store, stubGateway{})
	orderSvc := service.NewOrderService(env.store, env.cache, 16)
	defer orderSvc.Close()

	req := checkoutRequest()
	env.addLine(t, req.Owner, productID, 3)
	resp, err := checkoutSvc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if qty := env.productQty(t, productID); qty != 2 {
		t.Fatalf("expected stock 2 after checkout, got %d", qty)
	}

	result := service.PaymentResult{
		OrderID:    resp.OrderID,
		PaymentID:  uuid.NewString(),
		Amount:     "2250.00",
		ResultCode: "0",
	}
	if reply := orderSvc.HandlePaymentResult(ctx, result); !reply.OK {
		t.Fatalf("result rejected: %+v", reply)
	}

	order, err := orderSvc.GetOrder(ctx, resp.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", order.Status)
	}
	if qty := env.productQty(t, productID); qty != 5 {
		t.Errorf("expected stock restored to 5, got %d", qty)
	}

	// A success verdict arriving after the cancel loses the race.
	result.ResultCode = "1"
	result.PaymentID = uuid.NewString()
	if reply := orderSvc.HandlePaymentResult(ctx, result); !reply.OK {
		t.Fatalf("late result rejected: %+v", reply)
	}
	order, _ = orderSvc.GetOrder(ctx, resp.OrderID)
	if order.Status != domain.OrderStatusCancelled {
		t.Errorf("late success must not resurrect the order, got %s", order.Status)
	}
}
