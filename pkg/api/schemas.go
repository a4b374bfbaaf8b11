package api

import "github.com/xeipuuv/gojsonschema"

// Request body contracts. Field names match the storefront's existing
// clients. Range checks that carry a specific message (positive quantity,
// non-zero amount, known enum values) stay in the services. Quantities are
// capped at the INTEGER column range.

const schemaQuantity = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["quantity"],
  "properties": {
    "quantity": { "type": "integer", "maximum": 2147483647 }
  }
}`

const schemaAddToCart = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["product_id", "quantity"],
  "properties": {
    "customer_id": { "type": "integer", "minimum": 1 },
    "product_id": { "type": "integer", "minimum": 1 },
    "quantity": { "type": "integer", "maximum": 2147483647 }
  }
}`

const schemaCheckout = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["payment_method"],
  "properties": {
    "customer_id": { "type": "integer", "minimum": 1 },
    "payment_method": { "type": "string", "minLength": 1 }
  }
}`

const schemaCreateOrder = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["customer_id", "total_amount"],
  "properties": {
    "customer_id": { "type": "integer", "minimum": 1 },
    "total_amount": { "type": ["number", "string"] }
  }
}`

const schemaOrderItem = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["order_id", "product_id", "quantity", "price"],
  "properties": {
    "order_id": { "type": "integer", "minimum": 1 },
    "product_id": { "type": "integer", "minimum": 1 },
    "quantity": { "type": "integer", "minimum": 1, "maximum": 2147483647 },
    "price": { "type": ["number", "string"] }
  }
}`

const schemaPayment = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["order_id", "payment_method", "payment_status"],
  "properties": {
    "order_id": { "type": "integer", "minimum": 1 },
    "payment_method": { "type": "string", "minLength": 1 },
    "payment_status": { "type": "string", "minLength": 1 },
    "amount": { "type": ["number", "string"] }
  }
}`

const schemaTransaction = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["order_id", "payment_id", "transaction_type", "status", "amount"],
  "properties": {
    "order_id": { "type": "integer", "minimum": 1 },
    "payment_id": { "type": "integer", "minimum": 1 },
    "transaction_type": { "type": "string", "minLength": 1 },
    "status": { "type": "string", "minLength": 1 },
    "amount": { "type": ["number", "string"] }
  }
}`

const schemaTransactionPatch = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "status": { "type": "string" },
    "amount": { "type": ["number", "string"] }
  }
}`

var (
	quantityLoader         = gojsonschema.NewStringLoader(schemaQuantity)
	addToCartLoader        = gojsonschema.NewStringLoader(schemaAddToCart)
	checkoutLoader         = gojsonschema.NewStringLoader(schemaCheckout)
	createOrderLoader      = gojsonschema.NewStringLoader(schemaCreateOrder)
	orderItemLoader        = gojsonschema.NewStringLoader(schemaOrderItem)
	paymentLoader          = gojsonschema.NewStringLoader(schemaPayment)
	transactionLoader      = gojsonschema.NewStringLoader(schemaTransaction)
	transactionPatchLoader = gojsonschema.NewStringLoader(schemaTransactionPatch)
)
