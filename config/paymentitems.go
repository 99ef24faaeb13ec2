package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/wilsonwei2/CICD-From-RICKY-sub000/common"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/helpers"
	"github.com/wilsonwei2/CICD-From-RICKY-sub000/model"
)

// PaymentItemNode is either an ERP item id or a map of nested nodes keyed by
// provider or lower-case currency.
type PaymentItemNode struct {
	ID       string
	Children map[string]*PaymentItemNode
}

func (n *PaymentItemNode) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		return json.Unmarshal(data, &n.Children)
	case strings.HasPrefix(trimmed, `"`):
		return json.Unmarshal(data, &n.ID)
	case trimmed == "null":
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("payment item must be an id or an object, got %s\nERROR=%w", trimmed, err)
	}
	n.ID = number.String()
	return nil
}

func (n *PaymentItemNode) MarshalJSON() ([]byte, error) {
	if n.Children != nil {
		return json.Marshal(n.Children)
	}
	return json.Marshal(n.ID)
}

func (n *PaymentItemNode) IsLeaf() bool {
	return n != nil && n.Children == nil && n.ID != ""
}

// Child looks a key up ignoring case and accents. An exact key wins, then
// the first matching key in sorted order.
func (n *PaymentItemNode) Child(key string) *PaymentItemNode {
	if n == nil || key == "" {
		return nil
	}
	if child, found := n.Children[key]; found {
		return child
	}
	for _, k := range slices.Sorted(maps.Keys(n.Children)) {
		if equal, _ := helpers.CompareStrings(k, key); equal {
			return n.Children[k]
		}
	}
	return nil
}

func (n *PaymentItemNode) resolve(currency string) string {
	if n == nil {
		return ""
	}
	if n.IsLeaf() {
		return n.ID
	}
	if child := n.Child(strings.ToLower(currency)); child.IsLeaf() {
		return child.ID
	}
	return ""
}

// PaymentItemTable maps payment methods to ERP payment item ids.
type PaymentItemTable map[string]*PaymentItemNode

func (t PaymentItemTable) method(method string) *PaymentItemNode {
	root := &PaymentItemNode{Children: t}
	return root.Child(method)
}

// Lookup resolves the ERP payment item of a refunded payment. Credit cards are
// keyed by provider and fall back to the method entry, gift cards are keyed by
// currency, every other method is either an id or a currency map.
func (t PaymentItemTable) Lookup(method, provider, currency string) (string, error) {
	node := t.method(method)
	var id string
	switch method {
	case model.MethodCreditCard:
		if byProvider := node.Child(provider); byProvider != nil {
			id = byProvider.resolve(currency)
		}
		if id == "" {
			id = node.resolve(currency)
		}
	case model.MethodGiftCard:
		if child := node.Child(strings.ToLower(currency)); child.IsLeaf() {
			id = child.ID
		}
	default:
		id = node.resolve(currency)
	}
	if id == "" {
		return "", fmt.Errorf("%w: method=%s provider=%s currency=%s", common.ErrUnmappedPaymentMethod, method, provider, currency)
	}
	return id, nil
}
