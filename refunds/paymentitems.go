package refunds

import (
	"fmt"
	"strconv"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/config"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
)

// GiftCardCode returns the last four characters of the gift card number
// stored in the transaction metadata under "number" or "gift_card_number".
func GiftCardCode(tx model.RefundTransaction) string {
	number := metadataString(tx.Metadata, "number")
	if number == "" {
		number = metadataString(tx.Metadata, "gift_card_number")
	}
	if len(number) > 4 {
		return number[len(number)-4:]
	}
	return number
}

func metadataString(metadata map[string]any, key string) string {
	switch v := metadata[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// PaymentItems maps each selected transaction to one ERP payment line.
// Any transaction without a configured payment item fails the whole mapping.
func PaymentItems(table config.PaymentItemTable, txs []model.RefundTransaction) ([]model.PaymentItem, error) {
	items := make([]model.PaymentItem, 0, len(txs))
	for _, tx := range txs {
		id, err := table.Lookup(tx.PaymentMethod, tx.PaymentProvider, tx.Currency)
		if err != nil {
			return nil, fmt.Errorf("error mapping transaction %s:\n>>> %w", tx.TransactionID, err)
		}
		item := model.PaymentItem{
			ItemID:        id,
			Amount:        Amount(tx),
			PaymentMethod: tx.PaymentMethod,
			Provider:      tx.PaymentProvider,
			TransactionID: tx.TransactionID,
		}
		if tx.PaymentMethod == model.MethodGiftCard {
			item.GiftCardCode = GiftCardCode(tx)
		}
		items = append(items, item)
	}
	return items, nil
}
