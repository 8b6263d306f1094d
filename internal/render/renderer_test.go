package render

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"receiptgen/internal/domain"
)

const testTemplate = `<html><body>
<p>{{.name_surname}} ({{.email}}, {{.phone_number}})</p>
<p>Order {{.ORDERNUMBER}}: {{.PRODUCT_NAME}} {{.currency}}{{.PRODUCT_PRICE}}</p>
<p>Shipping {{.shipping_cost}}, total {{.ORDER_TOTAL}}</p>
<p>{{.BILLING1}}</p>
<p>{{.ADDRESS1}}</p>
<p>{{.DATE}} / {{.delivery_date}} / {{.payment_method}}</p>
<img src="{{.PRODUCT_IMAGE}}">
</body></html>`

func newTestRenderer(t *testing.T, files map[string]string) *Renderer {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return NewRenderer(dir, zap.NewNop())
}

func TestRenderer_BrandTemplateWinsOverDefault(t *testing.T) {
	r := newTestRenderer(t, map[string]string{
		"default.html": "default",
		"apple.html":   "apple",
	})

	out, err := r.Render("Apple", domain.ReceiptRecord{})
	require.NoError(t, err)
	assert.Equal(t, "apple", out)
}

func TestRenderer_FallsBackToDefault(t *testing.T) {
	r := newTestRenderer(t, map[string]string{
		"default.html": "default",
	})

	out, err := r.Render("Nike", domain.ReceiptRecord{})
	require.NoError(t, err)
	assert.Equal(t, "default", out)
}

func TestRenderer_NoTemplatesAtAll(t *testing.T) {
	r := newTestRenderer(t, nil)

	_, err := r.Render("Apple", domain.ReceiptRecord{})
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestRenderer_EmptyRecordUsesDefaults(t *testing.T) {
	r := newTestRenderer(t, map[string]string{"default.html": testTemplate})

	out, err := r.Render("Apple", domain.ReceiptRecord{})
	require.NoError(t, err)

	assert.Contains(t, out, "Unknown")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "USD")
	assert.Contains(t, out, "0")
}

func TestRenderer_AddressCommasBecomeNewlines(t *testing.T) {
	r := newTestRenderer(t, map[string]string{"default.html": "{{.BILLING1}}"})

	out, err := r.Render("Apple", domain.ReceiptRecord{
		domain.FieldBillingAddress: "1 Main St, Springfield, IL",
	})
	require.NoError(t, err)
	assert.Equal(t, "1 Main St\n Springfield\n IL", out)
}

func TestRenderer_OrderNumberRange(t *testing.T) {
	r := newTestRenderer(t, map[string]string{"default.html": "{{.ORDERNUMBER}}"})

	for i := 0; i < 50; i++ {
		out, err := r.Render("Apple", domain.ReceiptRecord{})
		require.NoError(t, err)

		n, err := strconv.Atoi(strings.TrimSpace(out))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestRenderer_RerenderDiffersOnlyInOrderNumber(t *testing.T) {
	r := newTestRenderer(t, map[string]string{"default.html": testTemplate})

	record := domain.ReceiptRecord{
		domain.FieldNameSurname:     "Jane Doe",
		domain.FieldProductName:     "Widget",
		domain.FieldPrice:           "9.99",
		domain.FieldCurrency:        "$",
		domain.FieldShippingCost:    "4.99",
		domain.FieldTotalForOrder:   "14.98",
		domain.FieldOrderDate:       "2025-01-02",
		domain.FieldDeliveryDate:    "2025-01-09",
		domain.FieldPaymentMethod:   "Visa",
		domain.FieldImageURL:        "https://example.com/widget.png",
		domain.FieldBillingAddress:  "1 Main St",
		domain.FieldShippingAddress: "2 Oak Ave",
		domain.FieldPhoneNumber:     "+15550100",
	}

	r.orderNumber = func() int { return 111111 }
	first, err := r.Render("Apple", record)
	require.NoError(t, err)

	r.orderNumber = func() int { return 222222 }
	second, err := r.Render("Apple", record)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t,
		strings.ReplaceAll(first, "111111", "#"),
		strings.ReplaceAll(second, "222222", "#"),
		"documents must be identical apart from the order number")

	r.orderNumber = func() int { return 111111 }
	third, err := r.Render("Apple", record)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestRenderer_HTMLEscapesFieldValues(t *testing.T) {
	r := newTestRenderer(t, map[string]string{"default.html": "{{.PRODUCT_NAME}}"})

	out, err := r.Render("Apple", domain.ReceiptRecord{
		domain.FieldProductName: "<script>alert(1)</script>",
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}
