package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// Fires concurrent placements at one variation and checks that exactly
// initialStock of them succeed: the oversell guard under real contention.
const (
	initialStock  = 20
	totalRequests = 50
)

func main() {
	baseURL := getenv("BASE_URL", "http://localhost:8080")
	mysqlDSN := getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/zapstore?parseTime=true")

	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	storeID, variationID := seed(ctx, db)
	log.Printf("seeded store %s, variation %s with stock %d", storeID, variationID, initialStock)

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var errorCount atomic.Int32

	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			body, _ := json.Marshal(map[string]any{
				"store_id":       storeID,
				"customer_name":  fmt.Sprintf("customer-%d", n),
				"customer_phone": fmt.Sprintf("+5511%08d", n),
				"items": []map[string]any{
					{"product_variation_id": variationID, "quantity": 1},
				},
			})

			resp, err := client.Post(baseURL+"/api/orders", "application/json", bytes.NewReader(body))
			if err != nil {
				errorCount.Add(1)
				return
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusConflict:
				soldOutCount.Add(1)
			default:
				errorCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== LOAD TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Created:          %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=======================================")

	if success == initialStock && soldOut == totalRequests-initialStock {
		fmt.Printf("PASS: exactly %d orders created, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d created/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	var finalStock int
	db.QueryRowContext(ctx, `SELECT stock FROM product_variations WHERE id = ?`, variationID).Scan(&finalStock)
	fmt.Printf("Final Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: stock depleted to 0")
	} else {
		fmt.Printf("FAIL: expected stock 0, got %d\n", finalStock)
	}
}

func seed(ctx context.Context, db *sql.DB) (storeID, variationID string) {
	storeID = uuid.NewString()
	productID := uuid.NewString()
	variationID = uuid.NewString()

	mustExec(ctx, db, `INSERT INTO stores (id, name, whatsapp) VALUES (?, ?, ?)`,
		storeID, "loadgen store", "+5511999999999")
	mustExec(ctx, db, `INSERT INTO products (id, store_id, name) VALUES (?, ?, ?)`,
		productID, storeID, "loadgen product")
	mustExec(ctx, db, `INSERT INTO product_variations (id, product_id, color, size, price, stock) VALUES (?, ?, ?, ?, ?, ?)`,
		variationID, productID, "preto", "M", 1000, initialStock)
	return storeID, variationID
}

func mustExec(ctx context.Context, db *sql.DB, query string, args ...any) {
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
