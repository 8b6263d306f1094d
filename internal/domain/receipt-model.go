package domain

// Field keys stored in a receipt record. The brand is written by the
// selection step, everything else by the form submission in one batch.
const (
	FieldBrandName       = "brand_name"
	FieldNameSurname     = "name_surname"
	FieldPhoneNumber     = "phone_number"
	FieldBillingAddress  = "billing_address"
	FieldShippingAddress = "shipping_address"
	FieldProductName     = "product_name"
	FieldPrice           = "price"
	FieldCurrency        = "currency"
	FieldShippingCost    = "shipping_cost"
	FieldTotalForOrder   = "total_for_order"
	FieldTotalAfterTax   = "total_after_tax"
	FieldOrderDate       = "order_date"
	FieldDeliveryDate    = "delivery_date"
	FieldPaymentMethod   = "payment_method"
	FieldImageURL        = "image_url"
)

// FormField describes one question of the receipt form.
type FormField struct {
	Key       string
	Prompt    string
	MaxLength int
	Required  bool
}

// FormSchema is the ordered set of questions asked after brand selection.
// All answers are merged into the receipt record in a single update.
var FormSchema = []FormField{
	{Key: FieldNameSurname, Prompt: "What is your name and surname?", MaxLength: 100, Required: true},
	{Key: FieldPhoneNumber, Prompt: "What is your phone number?", MaxLength: 15, Required: true},
	{Key: FieldBillingAddress, Prompt: "What is the billing address?", MaxLength: 200, Required: true},
	{Key: FieldShippingAddress, Prompt: "What is the shipping address?", MaxLength: 200, Required: true},
	{Key: FieldProductName, Prompt: "What is the product name?", MaxLength: 100, Required: true},
	{Key: FieldPrice, Prompt: "What is the price of the product?", MaxLength: 10, Required: true},
	{Key: FieldCurrency, Prompt: "What currency would you like your receipt to be in? (e.g. £, $, €)", MaxLength: 5, Required: true},
	{Key: FieldShippingCost, Prompt: "What is the shipping cost?", MaxLength: 10, Required: true},
	{Key: FieldTotalForOrder, Prompt: "What is the total for the order?", MaxLength: 10, Required: true},
	{Key: FieldTotalAfterTax, Prompt: "What is the total after tax?", MaxLength: 10, Required: true},
	{Key: FieldOrderDate, Prompt: "What is the order date? (e.g., YYYY-MM-DD)", MaxLength: 10, Required: true},
	{Key: FieldDeliveryDate, Prompt: "What is the expected delivery date? (e.g., YYYY-MM-DD)", MaxLength: 10, Required: true},
	{Key: FieldPaymentMethod, Prompt: "What is the payment method?", MaxLength: 50, Required: true},
	{Key: FieldImageURL, Prompt: "Please provide the product image URL.", MaxLength: 500, Required: true},
}

// ReceiptRecord is the accumulated per-user field mapping.
type ReceiptRecord map[string]string

// Copy returns an independent copy of the record.
func (r ReceiptRecord) Copy() ReceiptRecord {
	out := make(ReceiptRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
