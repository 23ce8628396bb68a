package gateway

// Link is a HATEOAS link on a gateway resource.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// Amount is a currency value as the gateway formats it ("12.50").
type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Description string `json:"description,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      Amount `json:"amount"`
}

type ApplicationContext struct {
	BrandName  string `json:"brand_name,omitempty"`
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	UserAction string `json:"user_action,omitempty"`
}

// OrderRequest is the body of a create-order call.
type OrderRequest struct {
	Intent             string              `json:"intent"`
	PurchaseUnits      []PurchaseUnit      `json:"purchase_units"`
	ApplicationContext *ApplicationContext `json:"application_context,omitempty"`
}

type Capture struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	CustomID string `json:"custom_id,omitempty"`
	Amount   Amount `json:"amount"`
}

type OrderUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      Amount `json:"amount"`
	Payments    struct {
		Captures []Capture `json:"captures"`
	} `json:"payments"`
}

// Order is a checkout order as returned by the gateway.
type Order struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	PurchaseUnits []OrderUnit `json:"purchase_units,omitempty"`
	Links         []Link      `json:"links"`
}

// SubscriptionRequest is the body of a create-subscription call.
type SubscriptionRequest struct {
	PlanID             string              `json:"plan_id"`
	CustomID           string              `json:"custom_id,omitempty"`
	ApplicationContext *ApplicationContext `json:"application_context,omitempty"`
}

// Subscription is a billing subscription as returned by the gateway.
type Subscription struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	PlanID   string `json:"plan_id"`
	CustomID string `json:"custom_id,omitempty"`
	Links    []Link `json:"links"`
}

// ApprovalLink returns the href of the "approve" link, or "" when absent.
func ApprovalLink(links []Link) string {
	for _, l := range links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}
