package storefront

import (
	"errors"
	"net/http"

	"github.com/joao-fontenele/rentalflow/internal/availability"
	"github.com/joao-fontenele/rentalflow/internal/cart"
	"github.com/joao-fontenele/rentalflow/internal/checkout"
	"github.com/joao-fontenele/rentalflow/internal/travel"
)

var (
	errLineNotFound   = errors.New("cart line not found")
	errUnknownProduct = errors.New("unknown product")
	errInvalidColor   = errors.New("color is not offered for this product")
)

type unavailableResponse struct {
	Error        string `json:"error"`
	ProductID    string `json:"product_id"`
	MaxAvailable int    `json:"max_available"`
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// respondError maps domain errors to HTTP answers. Anything unknown is a 500.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unavailable *availability.UnavailableError
		invalid     *checkout.ValidationError
		geocode     *travel.GeocodeNotFoundError
		gateway     *checkout.PaymentGatewayError
		persistence *checkout.PersistenceError
	)

	switch {
	case errors.As(err, &invalid):
		s.writeJSON(w, http.StatusBadRequest, validationResponse{Error: "invalid checkout input", Fields: invalid.Fields})
	case errors.Is(err, checkout.ErrEmptyCart):
		s.writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidRange), errors.Is(err, errInvalidColor):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errUnknownProduct), errors.Is(err, errLineNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &unavailable):
		s.writeJSON(w, http.StatusConflict, unavailableResponse{
			Error:        "requested quantity is not available",
			ProductID:    unavailable.ProductID,
			MaxAvailable: unavailable.MaxAvailable,
		})
	case errors.Is(err, cart.ErrStale), errors.Is(err, cart.ErrCartChanged):
		s.writeError(w, http.StatusConflict, "cart changed, please retry")
	case errors.As(err, &geocode):
		s.writeError(w, http.StatusUnprocessableEntity, "address could not be found")
	case errors.Is(err, availability.ErrCheckFailed):
		s.logger.Error("availability check failed", "error", err, "path", r.URL.Path)
		s.writeError(w, http.StatusBadGateway, "availability could not be verified")
	case errors.As(err, &gateway):
		s.writeError(w, http.StatusBadGateway, "payment provider unavailable")
	case errors.As(err, &persistence):
		s.logger.Error("checkout persistence failed", "error", err, "order_id", persistence.OrderID)
		s.writeError(w, http.StatusInternalServerError, "order could not be saved")
	default:
		s.logger.Error("request failed", "error", err, "path", r.URL.Path)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
