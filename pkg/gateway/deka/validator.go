package deka

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hamta/tarabar/pkg/gateway"
)

var mobilePattern = regexp.MustCompile(`^09\d{9}$`)

// validateOrder checks the shipment aggregate before any mapping happens.
// All violations are collected, not just the first.
func validateOrder(order *gateway.ShipmentOrder) []string {
	var errs []string
	s := order.Shipment

	if s.CustomerFirstName == "" {
		errs = append(errs, "receiver first name is required")
	}
	if s.CustomerLastName == "" {
		errs = append(errs, "receiver last name is required")
	}
	if s.Mobile == "" {
		errs = append(errs, "receiver mobile is required")
	}
	if s.Address == "" {
		errs = append(errs, "receiver address is required")
	}
	if s.DestinationCity == "" {
		errs = append(errs, "destination city is required")
	}
	if s.Mobile != "" && !mobilePattern.MatchString(s.Mobile) {
		errs = append(errs, "receiver mobile format is invalid, expected 09XXXXXXXXX")
	}
	if order.Receptor == nil {
		errs = append(errs, "shipment has no receptor")
	}

	return errs
}

// validateParcel checks the mapped wire payload against the integration's
// rules before dispatch.
func validateParcel(p *ParcelRequest) []string {
	var errs []string

	required := []struct {
		name  string
		empty bool
	}{
		{"serviceID", p.ServiceID == 0},
		{"serviceType", p.ServiceType == 0},
		{"destCityID", p.DestCityID == 0},
		{"sourceCityID", p.SourceCityID == 0},
		{"serialNo", p.SerialNo == ""},
		{"receiverFirstName", p.ReceiverFirstName == ""},
		{"receiverLastName", p.ReceiverLastName == ""},
		{"receiverAddress", p.ReceiverAddress == ""},
		{"receiverMobile", p.ReceiverMobile == ""},
		{"weight", p.Weight == 0},
		{"length", p.Length == 0},
		{"width", p.Width == 0},
		{"height", p.Height == 0},
		{"contentAmount", p.ContentAmount == 0},
		{"contents", p.Contents == ""},
	}
	for _, f := range required {
		if f.empty {
			errs = append(errs, fmt.Sprintf("field %s is required", f.name))
		}
	}

	if p.ServiceType != 0 && p.ServiceType != 1 && p.ServiceType != 2 {
		errs = append(errs, "serviceType must be 1 or 2")
	}
	if p.Weight < 0 {
		errs = append(errs, "weight must be a positive number")
	}
	if p.ReceiverMobile != "" && !mobilePattern.MatchString(p.ReceiverMobile) {
		errs = append(errs, "receiverMobile format is invalid")
	}
	if len([]rune(p.Contents)) > maxContentsChars {
		errs = append(errs, "contents must not exceed 300 characters")
	}

	return errs
}

// validationError aggregates violations into one gateway validation error.
func validationError(errs []string) *gateway.Error {
	return gateway.NewError(providerCode, gateway.KindValidation, strings.Join(errs, ", "))
}
