package api

import (
	"context"
	"net/http"

	"tablequeue/internal/models"
	"tablequeue/internal/service"
)

func (s *HTTPServer) handleCreateTableType(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTableTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	tt, err := s.svc.Catalog.CreateTableType(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tt)
}

func (s *HTTPServer) handleListTableTypes(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Catalog.ListTableTypes(r.Context(), r.URL.Query().Get("shop_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.TableType{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleGetTableType(w http.ResponseWriter, r *http.Request) {
	tt, err := s.svc.Catalog.GetTableType(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tt)
}

func (s *HTTPServer) handleCreateShopType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	st, err := s.svc.Catalog.CreateShopType(r.Context(), req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *HTTPServer) handleListShopTypes(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Catalog.ListShopTypes(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.ShopType{}
	}
	writeJSON(w, http.StatusOK, list)
}

type otpRequest struct {
	Type    string `json:"type"`
	Contact string `json:"contact"`
	Code    string `json:"code,omitempty"`
}

func (s *HTTPServer) handleSendOtp(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	otp, err := s.svc.Otp.Send(r.Context(), req.Type, req.Contact)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "sent", "expires_at": otp.ExpiresAt})
}

func (s *HTTPServer) handleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Otp.Verify(r.Context(), req.Type, req.Contact, req.Code); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (s *HTTPServer) handleRegisterShop(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterShopRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	shop, err := s.svc.Shops.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shop)
}

func (s *HTTPServer) handleListShops(w http.ResponseWriter, r *http.Request) {
	shops, err := s.svc.Shops.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if shops == nil {
		shops = []*models.Shop{}
	}
	writeJSON(w, http.StatusOK, shops)
}

func (s *HTTPServer) handleGetShop(w http.ResponseWriter, r *http.Request) {
	shop, err := s.svc.Shops.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (s *HTTPServer) handleShopLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	shop, err := s.svc.Shops.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

type contactChange struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
}

func (s *HTTPServer) handleShopPhone(w http.ResponseWriter, r *http.Request) {
	s.changeShop(w, r, func(req contactChange) (*models.Shop, error) {
		return s.svc.Shops.ChangePhone(r.Context(), r.PathValue("id"), req.PhoneNumber)
	})
}

func (s *HTTPServer) handleShopEmail(w http.ResponseWriter, r *http.Request) {
	s.changeShop(w, r, func(req contactChange) (*models.Shop, error) {
		return s.svc.Shops.ChangeEmail(r.Context(), r.PathValue("id"), req.Email)
	})
}

func (s *HTTPServer) handleShopName(w http.ResponseWriter, r *http.Request) {
	s.changeShop(w, r, func(req contactChange) (*models.Shop, error) {
		return s.svc.Shops.ChangeName(r.Context(), r.PathValue("id"), req.Name)
	})
}

func (s *HTTPServer) handleShopAddress(w http.ResponseWriter, r *http.Request) {
	var req service.ChangeAddressRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	shop, err := s.svc.Shops.ChangeAddress(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

type passwordChange struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
	Otp         string `json:"otp"`
}

func (s *HTTPServer) handleShopPassword(w http.ResponseWriter, r *http.Request) {
	s.changePassword(w, r, s.svc.Shops.ChangePassword)
}

func (s *HTTPServer) handleCustomerPassword(w http.ResponseWriter, r *http.Request) {
	s.changePassword(w, r, s.svc.Customers.ChangePassword)
}

func (s *HTTPServer) changePassword(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, id, oldPassword, newPassword, code string) error,
) {
	var req passwordChange
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := change(r.Context(), r.PathValue("id"), req.OldPassword, req.NewPassword, req.Otp); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

func (s *HTTPServer) changeShop(w http.ResponseWriter, r *http.Request, apply func(contactChange) (*models.Shop, error)) {
	var req contactChange
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	shop, err := apply(req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (s *HTTPServer) handleRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	c, err := s.svc.Customers.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *HTTPServer) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Customers.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *HTTPServer) handleCustomerByPhone(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Customers.FindByPhone(r.Context(), r.PathValue("phone"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *HTTPServer) handleCustomerLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		Password    string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	c, err := s.svc.Customers.Authenticate(r.Context(), req.PhoneNumber, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *HTTPServer) handleCustomerPhone(w http.ResponseWriter, r *http.Request) {
	s.changeCustomer(w, r, func(req contactChange) (*models.Customer, error) {
		return s.svc.Customers.ChangePhone(r.Context(), r.PathValue("id"), req.PhoneNumber)
	})
}

func (s *HTTPServer) handleCustomerName(w http.ResponseWriter, r *http.Request) {
	s.changeCustomer(w, r, func(req contactChange) (*models.Customer, error) {
		return s.svc.Customers.ChangeName(r.Context(), r.PathValue("id"), req.Name)
	})
}

func (s *HTTPServer) handleCustomerEmail(w http.ResponseWriter, r *http.Request) {
	var req service.ChangeEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	c, err := s.svc.Customers.ChangeEmail(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *HTTPServer) changeCustomer(w http.ResponseWriter, r *http.Request, apply func(contactChange) (*models.Customer, error)) {
	var req contactChange
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	c, err := apply(req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
