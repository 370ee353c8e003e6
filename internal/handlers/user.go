package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/hassanwarsame/quizduel/internal/database"
	"github.com/hassanwarsame/quizduel/internal/models"
	"github.com/hassanwarsame/quizduel/internal/store"
)

// CreateUserHandler registers a user and seeds their live profile mirror in
// the shared store.
func CreateUserHandler(logger *logrus.Logger, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var user models.User
		if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if user.Email == "" || user.Password == "" || user.Name == "" {
			http.Error(w, "email, password and name are required", http.StatusBadRequest)
			return
		}

		if err := database.CreateUser(r.Context(), &user); err != nil {
			logger.Warnf("failed to create user: %v", err)
			http.Error(w, "failed to create user", http.StatusInternalServerError)
			return
		}

		profile := models.ProfileDoc{
			ID:     user.ID,
			Name:   user.Name,
			Avatar: user.Avatar,
			Points: user.Points,
		}
		if err := st.Put(r.Context(), store.UserPath(user.ID), profile); err != nil {
			logger.Warnf("failed to seed profile mirror for %s: %v", user.ID, err)
			http.Error(w, "failed to create user", http.StatusInternalServerError)
			return
		}

		user.Password = ""
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(user)
	}
}

// LoginHandler authenticates a user and sets the auth_token cookie.
func LoginHandler(logger *logrus.Logger, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		token, err := database.AuthenticateUser(r.Context(), creds.Email, creds.Password)
		if err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		// Refresh the live mirror so points earned elsewhere are visible,
		// preserving any active match pointer.
		if user, err := database.GetUserByEmail(r.Context(), creds.Email); err == nil {
			path := store.UserPath(user.ID)
			if err := st.Update(r.Context(), path, func(tx store.Txn) error {
				var cur models.ProfileDoc
				if _, err := tx.Get(path, &cur); err != nil {
					return err
				}
				cur.ID = user.ID
				cur.Name = user.Name
				cur.Avatar = user.Avatar
				cur.Points = user.Points
				tx.Put(path, &cur)
				return nil
			}); err != nil {
				logger.Warnf("failed to refresh profile mirror for %s: %v", user.ID, err)
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    token,
			HttpOnly: true,
			Path:     "/",
		})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}
