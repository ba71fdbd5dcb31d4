package deka

import (
	"context"
)

// APIClient defines the interface for Deka API operations. The abstraction
// allows mock implementations in tests and the real HTTP client in
// production.
type APIClient interface {
	// Authenticate exchanges the configured credentials for a JWT. The
	// remote returns the token as a bare string body, not JSON.
	Authenticate(ctx context.Context) (string, error)

	// SaveParcel registers one parcel
	SaveParcel(ctx context.Context, token string, req *ParcelRequest) (*SaveParcelResponse, error)

	// TrackParcel retrieves tracking information for a parcel code
	TrackParcel(ctx context.Context, token, parcelCode string) (*TrackingResponse, error)

	// DeleteParcels voids the given parcels
	DeleteParcels(ctx context.Context, token string, parcelCodes []string, reasonID int) (*DeleteResponse, error)

	// GetVoidReasons lists the valid cancellation reasons
	GetVoidReasons(ctx context.Context, token string) ([]VoidReason, error)

	// GetCities lists the city catalogue (no authentication required)
	GetCities(ctx context.Context) ([]City, error)
}

// ============================================================================
// API Request/Response Types (match the Deka club API wire schema)
// ============================================================================

// ParcelRequest is the flat parcel registration schema.
// POST /clubapi/api/Parcels/SaveParcels
type ParcelRequest struct {
	// Contract fields from the provider config
	ServiceID     int `json:"serviceID"`
	ServiceType   int `json:"serviceType"` // 1: intra-city, 2: inter-city
	ContractID    int `json:"contractID"`
	ParcelTypeID  int `json:"parcelTypeID"`
	PaymentTypeID int `json:"paymentTypeID"`
	CharacterType int `json:"characterType"` // 1: natural person, 2: legal entity
	NeedPacking   int `json:"needPacking"`

	DestCityID   int    `json:"destCityID"`
	SourceCityID int    `json:"sourceCityID"`
	SerialNo     string `json:"serialNo"`

	SenderFirstName  string `json:"senderFirstName"`
	SenderLastName   string `json:"senderLastName"`
	SenderAddress    string `json:"senderAddress"`
	SenderMobile     string `json:"senderMobile"`
	SenderStreet     string `json:"senderStreet"`
	SenderZone       string `json:"senderZone"`
	SenderNID        string `json:"senderNID"`
	SenderPhone      string `json:"senderPhone"`
	SenderPostalCode string `json:"senderPostalCode"`

	ReceiverFirstName  string `json:"receiverFirstName"`
	ReceiverLastName   string `json:"receiverLastName"`
	ReceiverAddress    string `json:"receiverAddress"`
	ReceiverMobile     string `json:"receiverMobile"`
	ReceiverStreet     string `json:"receiverStreet"`
	ReceiverZone       string `json:"receiverZone"`
	ReceiverNID        string `json:"receiverNID"`
	ReceiverPhone      string `json:"receiverPhone"`
	ReceiverPostalCode string `json:"receiverPostalCode"`

	Weight      int `json:"weight"` // grams
	Length      int `json:"length"` // cm
	Width       int `json:"width"`
	Height      int `json:"height"`
	OutsizeFlag int `json:"outsizeFlag"`

	ContentAmount int    `json:"contentAmount"` // rials
	Contents      string `json:"contents"`      // max 300 characters

	SideServices     []int  `json:"lstSideServices"`
	SendPlaceFlag    int    `json:"sendPlaceFlag"`
	Lat              string `json:"Lat"`
	Lon              string `json:"Lon"`
	BoxID            any    `json:"boxID"`
	PaymentDate      string `json:"paymentDate"`
	CustomerHasBox   int    `json:"customerHasBox"`
	SenderLockerID   string `json:"SenderLockerID"`
	ReceiverLockerID string `json:"ReceiverLockerID"`
	CODTypeID        int    `json:"codTypeID"`
	CategoryTypeID   any    `json:"categoryTypeID"`
	CODServiceAmount int    `json:"codServiceAmount"`
	SuggestedDate    string `json:"suggestedDateTime"`
}

// SaveParcelResponse is the parcel registration response.
type SaveParcelResponse struct {
	Status  bool           `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    SaveParcelData `json:"data"`
}

// SaveParcelData carries the registration result fields.
type SaveParcelData struct {
	Parcels         []SavedParcel `json:"parcels"`
	ReferenceNumber string        `json:"referenceNumber,omitempty"`
	Amount          float64       `json:"amount,omitempty"`
	Tax             float64       `json:"tax,omitempty"`
}

// SavedParcel is one registered parcel.
type SavedParcel struct {
	ParcelCode string `json:"parcelCode"`
}

// TrackingResponse is the parcel tracking response.
// GET /clubapi/api/Gateway/ClubParcelsTracking
type TrackingResponse struct {
	Status  bool           `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// DeleteResponse is the void-parcels response.
// POST /clubapi/api/Parcels/DeleteParcelList
type DeleteResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}

// VoidReason is one valid cancellation reason.
// GET /clubapi/api/Parcels/GetCustomerParcelVoidReasons
type VoidReason struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// City is one entry of the city catalogue.
// GET /ParcelPrice/api/GetCities
type City struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// APIError represents an error from the Deka API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}
