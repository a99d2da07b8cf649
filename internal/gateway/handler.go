package gateway

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the gateway over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a gateway handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerFundRequest struct {
	FundsAddress string `json:"funds_address"`
	Description  string `json:"description"`
}

type donateRequest struct {
	Amount string `json:"amount"`
	Async  bool   `json:"async"`
}

type usageRequest struct {
	Reason string `json:"reason"`
	Amount string `json:"amount"`
	UsedOn string `json:"used_on"`
}

// Session reports the wallet session.
func (h *Handler) Session(c *fiber.Ctx) error {
	snap := h.service.Session()
	return c.JSON(fiber.Map{
		"address": snap.Address,
		"status":  snap.State.String(),
	})
}

// Connect requests account authorization from the signing agent.
func (h *Handler) Connect(c *fiber.Ctx) error {
	address, err := h.service.Connect(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"address": address, "status": h.service.Session().State.String()})
}

// SearchFund returns the fund registered at :address.
func (h *Handler) SearchFund(c *fiber.Ctx) error {
	fund, err := h.service.SearchFund(c.UserContext(), c.Params("address"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fund)
}

// RegisterFund registers a fund managed by the connected account.
func (h *Handler) RegisterFund(c *fiber.Ctx) error {
	var req registerFundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Description) == "" {
		return fiber.NewError(http.StatusBadRequest, "description is required")
	}
	res, err := h.service.AddFundManager(c.UserContext(), req.FundsAddress, req.Description)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(res)
}

// CloseFund removes the fund at :address.
func (h *Handler) CloseFund(c *fiber.Ctx) error {
	res, err := h.service.CloseFund(c.UserContext(), c.Params("address"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(res)
}

// Donate sends a donation to the fund at :address. Unless async is set the
// response is written once the donation is confirmed or has failed. A donation
// that reached the ledger but did not confirm is answered with 202 and the
// tracked transaction; it must never be a 5xx, which would free its
// Idempotency-Key for a second submission.
func (h *Handler) Donate(c *fiber.Ctx) error {
	var req donateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if req.Async {
		handle, err := h.service.DonateAsync(c.UserContext(), c.Params("address"), req.Amount)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(http.StatusAccepted).JSON(handle)
	}

	handle, err := h.service.Donate(c.UserContext(), c.Params("address"), req.Amount)
	if err != nil {
		if handle.Hash == "" {
			return writeError(c, err)
		}
		gwErr := normalize(OpDonate, err)
		return c.Status(http.StatusAccepted).JSON(fiber.Map{"error": gwErr, "transaction": handle})
	}
	return c.Status(http.StatusCreated).JSON(handle)
}

// Transaction returns the tracked donation with hash :hash.
func (h *Handler) Transaction(c *fiber.Ctx) error {
	handle, err := h.service.Transaction(c.Params("hash"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(handle)
}

// InProgress reports whether a donation is awaiting confirmation.
func (h *Handler) InProgress(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"in_progress": h.service.DonationInProgress(),
		"pending":     h.service.PendingDonations(),
	})
}

// AddUsage records how part of the fund at :address was spent.
func (h *Handler) AddUsage(c *fiber.Ctx) error {
	var req usageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	usedOn, err := parseUsedOn(req.UsedOn)
	if err != nil {
		return err
	}
	res, err := h.service.AddUsage(c.UserContext(), c.Params("address"), req.Reason, req.Amount, usedOn)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(res)
}

// ListUsage returns the usage history of the fund at :address.
func (h *Handler) ListUsage(c *fiber.Ctx) error {
	records, err := h.service.ListUsage(c.UserContext(), c.Params("address"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"usage": records})
}

// Journal lists transactions submitted through this gateway.
func (h *Handler) Journal(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	entries, err := h.service.Journal(c.UserContext(), c.Query("funds_address"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// parseUsedOn accepts a calendar date, an RFC 3339 timestamp or epoch seconds.
// An empty value means now.
func parseUsedOn(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fiber.NewError(http.StatusBadRequest, "used_on must be YYYY-MM-DD, RFC 3339 or epoch seconds")
}

func writeError(c *fiber.Ctx, err error) error {
	gwErr, ok := AsError(err)
	if !ok {
		gwErr = normalize("", err)
	}
	return c.Status(statusFor(gwErr)).JSON(fiber.Map{"error": gwErr})
}

func statusFor(err *Error) int {
	switch err.Kind {
	case KindMalformedAmount, KindInvalidAddress:
		return http.StatusBadRequest
	case KindUserRejected:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindProviderMissing:
		return http.StatusServiceUnavailable
	case KindTransactionTimeout:
		return http.StatusGatewayTimeout
	case KindLedgerCallFailed:
		if err.Reason != "" {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
