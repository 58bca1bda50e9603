// Package orders holds the normalized order record shared by ingestion and
// the aggregation views.
package orders

import "time"

// Source column headers, matched after trimming surrounding whitespace.
const (
	ColOrderDate     = "ORD DT"
	ColAccountID     = "ACCT"
	ColAccountName   = "ACCT NM"
	ColOffice        = "OFC"
	ColOrderNumber   = "ORD#"
	ColPickupCost    = "PU COST"
	ColShippingCost  = "SHIP COST"
	ColManufacturing = "MAN COST"
	ColDeliveryCost  = "DEL COST"
	ColTotalCost     = "Total cost"
	ColNet           = "NET"
	ColCurrency      = "CURR"
	ColInvoiceNumber = "INV#"
	ColInvoiced      = "TOTAL$"
	ColStatus        = "STATUS"
	ColPickupCountry = "PU CTRY"
)

const (
	// StatusBilled is the status code of a billed order.
	StatusBilled = "440-BILLED"
	// UnknownMonth buckets records whose order date could not be parsed.
	UnknownMonth = "Unknown"
	// UnknownCountry groups records without a pickup country.
	UnknownCountry = "Unknown"
	// MonthLayout formats month keys.
	MonthLayout = "2006-01"
)

// Columns lists every expected header in source order.
func Columns() []string {
	return []string{
		ColOrderDate, ColAccountID, ColAccountName, ColOffice, ColOrderNumber,
		ColPickupCost, ColShippingCost, ColManufacturing, ColDeliveryCost,
		ColTotalCost, ColNet, ColCurrency, ColInvoiceNumber, ColInvoiced,
		ColStatus, ColPickupCountry,
	}
}

// AmountColumns lists the monetary headers in the order Amounts stores them.
func AmountColumns() []string {
	return []string{
		ColPickupCost, ColShippingCost, ColManufacturing, ColDeliveryCost,
		ColTotalCost, ColNet, ColInvoiced,
	}
}

// Amounts groups the monetary fields of an order.
type Amounts struct {
	Pickup        float64 `json:"pickup"`
	Shipping      float64 `json:"shipping"`
	Manufacturing float64 `json:"manufacturing"`
	Delivery      float64 `json:"delivery"`
	Total         float64 `json:"total"`
	Net           float64 `json:"net"`
	Invoiced      float64 `json:"invoiced"`
}

// Values returns the amounts in AmountColumns order.
func (a Amounts) Values() []float64 {
	return []float64{a.Pickup, a.Shipping, a.Manufacturing, a.Delivery, a.Total, a.Net, a.Invoiced}
}

// Set assigns the amount stored under the given column header.
func (a *Amounts) Set(column string, value float64) {
	switch column {
	case ColPickupCost:
		a.Pickup = value
	case ColShippingCost:
		a.Shipping = value
	case ColManufacturing:
		a.Manufacturing = value
	case ColDeliveryCost:
		a.Delivery = value
	case ColTotalCost:
		a.Total = value
	case ColNet:
		a.Net = value
	case ColInvoiced:
		a.Invoiced = value
	}
}

// Add returns the field-wise sum of a and b.
func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{
		Pickup:        a.Pickup + b.Pickup,
		Shipping:      a.Shipping + b.Shipping,
		Manufacturing: a.Manufacturing + b.Manufacturing,
		Delivery:      a.Delivery + b.Delivery,
		Total:         a.Total + b.Total,
		Net:           a.Net + b.Net,
		Invoiced:      a.Invoiced + b.Invoiced,
	}
}

// Record is one normalized order. Records are built once during ingestion
// and never mutated afterwards.
type Record struct {
	Row           int       `json:"row"`
	OrderDate     time.Time `json:"order_date"`
	DateValid     bool      `json:"date_valid"`
	Month         string    `json:"month"`
	AccountID     string    `json:"account_id"`
	AccountName   string    `json:"account_name"`
	Office        string    `json:"office"`
	OrderNumber   string    `json:"order_number"`
	InvoiceNumber string    `json:"invoice_number"`
	Status        string    `json:"status"`
	PickupCountry string    `json:"pickup_country"`
	Currency      string    `json:"currency"`
	Raw           Amounts   `json:"raw"`
	Reporting     Amounts   `json:"reporting"`
}

// MonthKey returns the month bucket for an order date.
func MonthKey(t time.Time, valid bool) string {
	if !valid || t.IsZero() {
		return UnknownMonth
	}
	return t.Format(MonthLayout)
}

// Country returns the pickup country, falling back to UnknownCountry.
func (r Record) Country() string {
	if r.PickupCountry == "" {
		return UnknownCountry
	}
	return r.PickupCountry
}

// Margin is net minus total cost in the reporting currency.
func (r Record) Margin() float64 {
	return r.Reporting.Net - r.Reporting.Total
}
