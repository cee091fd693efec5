package domain

import "github.com/shopspring/decimal"

// Product: товар из внешнего каталога.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// ProductIndex индексирует ответ каталога по идентификатору товара.
func ProductIndex(products []Product) map[int64]Product {
	index := make(map[int64]Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return index
}

// MissingProducts возвращает идентификаторы, которых нет в ответе каталога.
func MissingProducts(ids []int64, index map[int64]Product) []int64 {
	var missing []int64
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// UniqueProductIDs убирает повторы, сохраняя порядок первого появления.
func UniqueProductIDs(ids []int64) []int64 {
	return uniqueProductIDs(len(ids), func(i int) int64 { return ids[i] })
}

// PaymentLineItem: строка платёжной сессии.
type PaymentLineItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// PaymentSessionRequest: запрос на создание платёжной сессии.
type PaymentSessionRequest struct {
	OrderID  string
	Currency string
	Items    []PaymentLineItem
}

// PaymentSession: ответ провайдера, возвращается клиенту без изменений.
type PaymentSession struct {
	URL        string
	SuccessURL string
	CancelURL  string
}

// PaymentConfirmation: асинхронное подтверждение оплаты от провайдера.
type PaymentConfirmation struct {
	ProviderPaymentID string
	OrderID           string
	ReceiptURL        string
}
