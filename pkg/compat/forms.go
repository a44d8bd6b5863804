package compat

import (
	"sort"

	"github.com/goliatone/go-storefront/pkg/themeerr"
)

// Form describes where a form tag posts.
type Form struct {
	ID     string
	Action string
}

// Forms is the static form descriptor table, keyed by the id used in
// {% form 'id' %}.
var Forms = map[string]Form{
	"product":                    {ID: "product", Action: "/cart/add"},
	"cart":                       {ID: "cart", Action: "/cart"},
	"contact":                    {ID: "contact", Action: "/contact"},
	"customer":                   {ID: "customer", Action: "/contact#newsletter"},
	"create_customer":            {ID: "create_customer", Action: "/account/signup"},
	"customer_login":             {ID: "customer_login", Action: "/account/login"},
	"guest_login":                {ID: "guest_login", Action: "/account/login#guest"},
	"recover_customer_password":  {ID: "recover_customer_password", Action: "/account/recover"},
	"reset_customer_password":    {ID: "reset_customer_password", Action: "/account/recover/reset"},
	"activate_customer_password": {ID: "activate_customer_password", Action: "/account/activate"},
	"customer_address":           {ID: "customer_address", Action: "/account/addresses"},
	"new_comment":                {ID: "new_comment", Action: "/blogs/comments"},
	"localization":               {ID: "localization", Action: "/localization"},
	"storefront_password":        {ID: "storefront_password", Action: "/password"},
	"currency":                   {ID: "currency", Action: "/cart/currency"},
	"cart_add":                   {ID: "cart_add", Action: "/cart/add"},
	"cart_update":                {ID: "cart_update", Action: "/cart/update"},
	"account_login":              {ID: "account_login", Action: "/account/login"},
	"account_create":             {ID: "account_create", Action: "/account/signup"},
	"account_password_recover":   {ID: "account_password_recover", Action: "/account/recover"},
	"account_address":            {ID: "account_address", Action: "/account/addresses"},
	"account_subscribe":          {ID: "account_subscribe", Action: "/account/subscribe"},
}

// LookupForm returns the descriptor for id or a CompatibilityError.
func LookupForm(id string) (Form, error) {
	form, ok := Forms[id]
	if !ok {
		return Form{}, &themeerr.CompatibilityError{Construct: "form", Value: id}
	}
	return form, nil
}

// FormIDs lists the known form ids in order.
func FormIDs() []string {
	out := make([]string, 0, len(Forms))
	for id := range Forms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
