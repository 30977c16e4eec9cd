package api

import (
	"encoding/json"
	"net/http"
)

var exampleQuestions = []string{
	"Find all employees who earn more than $50,000",
	"Show the total sales by product category for the year 2023",
	"List the top 10 customers by order value",
	"Get all orders placed in the last 30 days",
	"Calculate the average order value by month",
}

// exampleSchema is kept as raw JSON so the table order survives encoding.
var exampleSchema = json.RawMessage(`{
  "customers": ["customer_id", "name", "email", "join_date"],
  "orders": ["order_id", "customer_id", "order_date", "total_amount"],
  "products": ["product_id", "name", "category", "price"],
  "order_items": ["order_id", "product_id", "quantity", "unit_price"]
}`)

func handleExamples(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"questions": exampleQuestions,
		"schema":    exampleSchema,
	})
}
