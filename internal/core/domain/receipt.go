package domain

// Receipt is the order-completed message handed to the notification workers
// once a payment is confirmed. It carries everything the queue consumers and
// the receipt email need, so no worker has to go back to the database.
type Receipt struct {
	OrderID  int64          `json:"order_id"`
	FullName string         `json:"full_name"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	Address  ReceiptAddress `json:"address"`
	Items    []ReceiptItem  `json:"items"`
	Total    string         `json:"total"`
}

type ReceiptAddress struct {
	Region     string `json:"region"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	PostalCode string `json:"postal_code"`
}

type ReceiptItem struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
}

// ReceiptFromOrder flattens a loaded order into its notification payload.
func ReceiptFromOrder(o *Order) Receipt {
	items := make([]ReceiptItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = ReceiptItem{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price.StringFixed(2),
		}
	}
	r := Receipt{
		OrderID: o.ID,
		Items:   items,
		Total:   o.TotalPrice.StringFixed(2),
	}
	if o.Info != nil {
		r.FullName = o.Info.FirstName + " " + o.Info.LastName
		r.Email = o.Info.Email
		r.Phone = o.Info.Phone
		r.Address = ReceiptAddress{
			Region:     o.Info.Region,
			City:       o.Info.City,
			Line1:      o.Info.AddressLine1,
			PostalCode: o.Info.PostalCode,
		}
	}
	return r
}
