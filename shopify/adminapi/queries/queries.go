package queries

// STRUCTS

type ShopifyQuery struct {
	ResultKey string
	Query     string
}

// FRAGMENTS

var mailingAddressFragment = `
fragment MailingAddressFields on MailingAddress {
	firstName
	lastName
	phone
	address1
	address2
	city
	provinceCode
	countryCodeV2
	zip
}
`

var moneyFragment = `
fragment MoneyFields on MoneyV2 {
	amount
	currencyCode
}
`

var moneyBagFragment = moneyFragment + `
fragment MoneyBagFields on MoneyBag {
	shopMoney {
		...MoneyFields
	}
	presentmentMoney {
		...MoneyFields
	}
}
`

var taxLineFragment = `
fragment TaxLineFields on TaxLine {
	priceSet {
		...MoneyBagFields
	}
	rate
	title
}
`

var discountAllocationFragment = `
fragment DiscountAllocationFields on DiscountAllocation {
	allocatedAmountSet {
		...MoneyBagFields
	}
	discountApplication {
		index
		targetSelection
		targetType
		allocationMethod
		value {
			... on MoneyV2 {
				amount
				currencyCode
			}
			... on PricingPercentageValue {
				percentage
			}
		}
		... on DiscountCodeApplication {
			code
		}
		... on ManualDiscountApplication {
			title
			description
		}
		... on AutomaticDiscountApplication {
			title
		}
		... on ScriptDiscountApplication {
			title
		}
	}
}
`

var orderFragment = mailingAddressFragment + moneyBagFragment + taxLineFragment + discountAllocationFragment + `
fragment OrderFields on Order {
	id
	name
	email
	createdAt
	processedAt
	currencyCode
	taxesIncluded
	tags
	customer {
		id
		firstName
		lastName
	}
	customAttributes {
		key
		value
	}
	billingAddress {
		...MailingAddressFields
	}
	shippingAddress {
		...MailingAddressFields
	}
	lineItems(first: 250) {
		edges {
			node {
				id
				name
				sku
				quantity
				requiresShipping
				isGiftCard
				variant {
					id
				}
				originalUnitPriceSet {
					...MoneyBagFields
				}
				taxLines {
					...TaxLineFields
				}
				discountAllocations {
					...DiscountAllocationFields
				}
			}
		}
	}
	shippingLines(first: 10) {
		edges {
			node {
				id
				title
				code
				source
				carrierIdentifier
				originalPriceSet {
					...MoneyBagFields
				}
				taxLines {
					...TaxLineFields
				}
				discountAllocations {
					...DiscountAllocationFields
				}
			}
		}
	}
}
`

var orderTransactionFragment = `
fragment OrderTransactionFields on OrderTransaction {
	id
	kind
	status
	gateway
	createdAt
	receiptJson
	amountSet {
		...MoneyBagFields
	}
	parentTransaction {
		id
	}
	paymentDetails {
		... on CardPaymentDetails {
			company
			number
		}
	}
}
`

var orderWithTransactionsFragment = orderFragment + orderTransactionFragment + `
fragment OrderWithTransactionsFields on Order {
	...OrderFields
	transactions {
		...OrderTransactionFields
	}
}
`

// QUERIES

// Unmarshall to: types.Order
var Order = ShopifyQuery{
	ResultKey: "order",
	Query: orderFragment + `
query ($id: ID!) {
	order(id: $id) {
		...OrderFields
	}
}
`,
}

// Unmarshall to: types.Order
var OrderWithTransactions = ShopifyQuery{
	ResultKey: "order",
	Query: orderWithTransactionsFragment + `
query ($id: ID!) {
	order(id: $id) {
		...OrderWithTransactionsFields
	}
}
`,
}
