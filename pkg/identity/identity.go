// Package identity builds the unique ids that tie store customers and orders
// to their CRM records. The CRM matches records on appLink uniqueids scoped by
// source, plus bare email addresses and its own "direct" record ids.
package identity

import "fmt"

// Customer returns the uniqueid for a store customer and whether the email
// address had to stand in for it. Guest checkouts carry customer id "0" and
// are keyed by email instead.
func Customer(customerID, email string) (id string, emailIsID bool) {
	if customerID == "" || customerID == "0" {
		return email, true
	}
	return customerID, false
}

// OrderUID returns the source-scoped uniqueid for an order.
func OrderUID(source, orderID string) string {
	return fmt.Sprintf("%s:%s", source, orderID)
}

// OrderIDs returns every id an order record is known by: the source-scoped
// id, plus the CRM's direct id when the record has one.
func OrderIDs(source, orderName, direct string) []string {
	ids := []string{OrderUID(source, orderName)}
	if direct != "" {
		ids = append(ids, "direct:"+direct)
	}
	return ids
}

// CustomerIDs returns every id a customer's CRM record may be known by. Used
// to decide whether an order is already linked to the customer.
func CustomerIDs(source, email, customerID, direct string) []string {
	id, _ := Customer(customerID, email)
	return []string{
		"direct:" + direct,
		email,
		OrderUID(source, id),
	}
}

// Intersects reports whether any candidate id appears in ids.
func Intersects(ids, candidates []string) bool {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, c := range candidates {
		if _, ok := set[c]; ok {
			return true
		}
	}
	return false
}
