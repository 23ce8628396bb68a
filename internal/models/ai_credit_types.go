package models

import "github.com/shopspring/decimal"

// CreditPack is a purchasable bundle of AI credits.
type CreditPack struct {
	ID      string          `json:"id"`
	Credits int             `json:"credits"`
	Price   decimal.Decimal `json:"price"`
}

// CreditPacks is the catalogue offered at checkout.
var CreditPacks = map[string]CreditPack{
	"starter": {ID: "starter", Credits: 100, Price: decimal.RequireFromString("9.99")},
	"creator": {ID: "creator", Credits: 500, Price: decimal.RequireFromString("39.99")},
	"studio":  {ID: "studio", Credits: 2000, Price: decimal.RequireFromString("129.99")},
}
