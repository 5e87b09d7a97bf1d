package reconcile

import (
	"fmt"

	"github.com/Ramsey-B/clover/pkg/cart"
	"github.com/Ramsey-B/clover/pkg/crm"
	"github.com/Ramsey-B/clover/pkg/fieldmap"
	"github.com/Ramsey-B/clover/pkg/identity"
)

// Builder assembles CRM record payloads for store orders and customers.
type Builder struct {
	Fields        fieldmap.FieldMap
	Source        string
	AdminLinkBase string
	ShareTo       string
}

// Customer builds the person payload for an order's customer.
func (b *Builder) Customer(order cart.Order) crm.Record {
	customerID, emailIsID := identity.Customer(order.CustomerID.String(), order.Email)
	orderID := order.OrderID.String()

	// Admin deep link for the person. Guest customers have no customer page,
	// so their link points at the order instead.
	linkURL := fmt.Sprintf("%scustomer/customer/edit&customer_id=%s", b.AdminLinkBase, customerID)
	if emailIsID {
		linkURL = fmt.Sprintf("%ssale/order/info&order_id=%s", b.AdminLinkBase, orderID)
	}

	return crm.Record{
		"name":     order.CustomerName(),
		"headline": fmt.Sprintf("Store Customer - Order %s", orderID),
		"stage":    PersonStage(order.Status()),
		// shareTo must be "team" for the rest of the team to see the person
		"shareTo": b.ShareTo,
		"segment": b.Fields.CustomerSegment,
		"phones": []any{
			// the CRM drops values that are not valid US phone numbers
			map[string]any{"value": order.Telephone},
		},
		"emails": []any{
			// the CRM drops addresses it deems bulk (sales@, info@, ...)
			map[string]any{"value": order.Email},
		},
		"customFields": []any{
			map[string]any{
				"id":    b.Fields.LeadSource,
				"type":  "keywords",
				"value": "website",
			},
		},
		"appLinks": []any{
			map[string]any{
				"source":   b.Source, // must always be the same
				"uniqueid": customerID,
				"label":    "Store Customer",
				"url":      linkURL,
			},
		},
	}
}

// Order builds the project payload for an order. manufacturers is the
// comma-joined manufacturer list, which doubles as the project summary.
func (b *Builder) Order(order cart.Order, manufacturers string, customer crm.Record) crm.Record {
	orderID := order.OrderID.String()
	total := order.Total.String()

	customFields := []any{
		map[string]any{"id": b.Fields.Value, "type": "currency", "value": total},
		map[string]any{"id": b.Fields.Amount, "type": "decimal", "value": total},
		map[string]any{"id": b.Fields.OrderNum, "type": "text", "value": orderID},
		map[string]any{"id": b.Fields.Manufacturers, "type": "text", "value": manufacturers},
	}

	if b.Fields.PlannedStart != "" {
		customFields = append(customFields, map[string]any{
			"id":    b.Fields.PlannedStart,
			"type":  "date",
			"value": order.DateAdded,
		})
	}

	if customer != nil {
		customFields = append(customFields, b.contactField(order, customer))
	}

	return crm.Record{
		"name":     orderID,
		"summary":  manufacturers,
		"importTo": b.ShareTo,
		// members of the deal team see the project under their personal
		// projects; none are assigned here
		"projectTeam":  []any{},
		"stage":        ProjectStage(order.Status()),
		"segment":      b.Fields.ProjectSegment,
		b.Fields.Start: order.DateAdded,
		"customFields": customFields,
		"appLinks": []any{
			b.orderAppLink(orderID),
		},
	}
}

// CustomerToOrder builds the partial project payload that attaches a customer
// to an existing order. Only one customer can be associated with an order, so
// replacing the contact field value is safe.
func (b *Builder) CustomerToOrder(order cart.Order, customer crm.Record) crm.Record {
	orderID := order.OrderID.String()

	return crm.Record{
		"importTo": b.ShareTo,
		"name":     orderID,
		"customFields": []any{
			b.contactField(order, customer),
		},
		"appLinks": []any{
			b.orderAppLink(orderID),
		},
	}
}

// OrderValue builds the orders-link entry describing one CRM order.
func (b *Builder) OrderValue(crmOrder crm.Record) map[string]any {
	ids := identity.OrderIDs(b.Source, crmOrder.Name(), crmOrder.Direct())
	idList := make([]any, len(ids))
	for i, id := range ids {
		idList[i] = id
	}

	return map[string]any{
		"name": crmOrder.Name(),
		"type": "project",
		"ids":  idList,
	}
}

// OrderLinkField builds a fresh orders-link custom field holding one order.
func (b *Builder) OrderLinkField(crmOrder crm.Record) crm.Record {
	return crm.Record{
		"id":    b.Fields.OrdersLink,
		"type":  "projects",
		"value": []any{b.OrderValue(crmOrder)},
	}
}

func (b *Builder) contactField(order cart.Order, customer crm.Record) map[string]any {
	return map[string]any{
		"id":   b.Fields.CustomerLink,
		"type": "contact",
		"value": map[string]any{
			"name":  customer.Name(),
			"email": order.Email,
		},
	}
}

func (b *Builder) orderAppLink(orderID string) map[string]any {
	return map[string]any{
		"source":   b.Source, // must always be the same
		"uniqueid": orderID,  // uniqueid must be a string
		"label":    "Store Order",
		"url":      fmt.Sprintf("%ssale/order/info&order_id=%s", b.AdminLinkBase, orderID),
	}
}
