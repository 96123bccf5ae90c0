package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/api/auth"
	"github.com/webnest/webnest-api/api/notify"
	"github.com/webnest/webnest-api/api/scheduler"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/email"
	"github.com/webnest/webnest-api/models"
	"github.com/webnest/webnest-api/payments"
	"github.com/webnest/webnest-api/uploads"
)

// RequestTimeout bounds every REST request. The websocket route is exempt.
const RequestTimeout = 30 * time.Second

// Rate limits for unauthenticated auth endpoints
const (
	authRateLimit  = 10
	authRateWindow = 15 * time.Minute
	otpRateLimit   = 5
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Scheduler *scheduler.Scheduler

	client   databases.ClientHelper
	dbHelper databases.DatabaseHelper
	tx       databases.Transactor
	mailer   email.Sender
	payments payments.Gateway
	hub      *notify.Hub
	tokens   *auth.TokenService
}

// Handler returns the router wrapped in CORS so preflight requests never reach mux
func (a *App) Handler() http.Handler {
	return api.CORS(a.Config.AllowedOrigins)(a.Router)
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.mailer == nil {
		a.mailer = email.LogSender{}
	}
	if a.hub == nil {
		a.hub = notify.NewHub(a.Config.AllowedOrigins)
	}

	adb := databases.NewAdminDatabase(a.dbHelper)
	udb := databases.NewUserDatabase(a.dbHelper)
	devDB := databases.NewDeveloperDatabase(a.dbHelper)
	pdb := databases.NewProjectDatabase(a.dbHelper)
	asDB := databases.NewAssignmentDatabase(a.dbHelper)
	ddb := databases.NewDeadlineDatabase(a.dbHelper)
	edb := databases.NewEarningDatabase(a.dbHelper)
	wdb := databases.NewWithdrawalDatabase(a.dbHelper)
	ndb := databases.NewNotificationDatabase(a.dbHelper)

	a.tokens = auth.NewTokenService(databases.NewRefreshTokenDatabase(a.dbHelper), a.Config.JWTSecret, a.Config.AccessTokenTTL)
	otp := auth.NewOTPService(adb, a.mailer)
	notifier := notify.NewService(ndb, a.hub)
	authenticator := api.NewAuthenticator(a.tokens, a.Config.AccessTokenTTL)

	adminH := Admin{ADB: adb, RDB: databases.NewAdminResetDatabase(a.dbHelper), OTP: otp, Tokens: a.tokens, Mailer: a.mailer, FrontendURL: a.Config.FrontendURL}
	userH := User{UDB: udb, PDB: pdb}
	devAdminH := DeveloperAdmin{DevDB: devDB, AsDB: asDB}
	projectH := Project{PDB: pdb, AsDB: asDB, DevDB: devDB, DDB: ddb, Tx: a.tx, Notifier: notifier, Mailer: a.mailer, FrontendURL: a.Config.FrontendURL}
	earningH := Earning{EDB: edb, WDB: wdb, DevDB: devDB, PDB: pdb, Notifier: notifier}
	analyticsH := Analytics{UDB: udb, DevDB: devDB, PDB: pdb, EDB: edb}
	clientH := Client{UDB: udb, PDB: pdb, DDB: ddb, Tokens: a.tokens, Payments: a.payments, Mailer: a.mailer, Notifier: notifier, FrontendURL: a.Config.FrontendURL}
	developerH := Developer{
		DevDB: devDB, AsDB: asDB, PDB: pdb, EDB: edb, WDB: wdb, DDB: ddb, Tx: a.tx,
		Tokens:   a.tokens,
		Uploads:  uploads.NewSigner(a.Config.CloudinaryCloudName, a.Config.CloudinaryAPIKey, a.Config.CloudinaryAPISecret),
		Notifier: notifier,
	}
	tokenH := Tokens{Tokens: a.tokens, ADB: adb, UDB: udb, DevDB: devDB}
	notificationH := Notification{NDB: ndb, Hub: a.hub, Auth: authenticator}

	loginLimit := api.RateLimit(api.NewLimiter(a.Config.RedisURL, "login", authRateLimit, authRateWindow), "login")
	otpLimit := api.RateLimit(api.NewLimiter(a.Config.RedisURL, "otp", otpRateLimit, authRateWindow), "otp")

	r := api.New()
	r.Use(api.MetricsMiddleware)

	r.HandleFunc("/ws/notifications", notificationH.WebSocketHandler).Methods("GET")

	rest := r.PathPrefix("/api").Subrouter()
	rest.Use(api.TimeoutMiddleware(RequestTimeout))

	authed := func(kind models.PrincipalKind, sub *mux.Router) *mux.Router {
		s := sub.NewRoute().Subrouter()
		s.Use(authenticator.Middleware, api.RequireKind(kind))
		return s
	}

	tokenRoutes := rest.PathPrefix("/auth").Subrouter()
	tokenRoutes.HandleFunc("/refresh", tokenH.RefreshHandler).Methods("POST")
	tokenRoutes.HandleFunc("/logout", tokenH.LogoutHandler).Methods("POST")
	tokenRoutes.Handle("/logout-all", authenticator.Middleware(http.HandlerFunc(tokenH.LogoutAllHandler))).Methods("POST")

	if a.Config.HasService("admin") {
		admin := rest.PathPrefix("/admin").Subrouter()
		admin.Handle("/auth/login", loginLimit(http.HandlerFunc(adminH.AdminLoginHandler))).Methods("POST")
		admin.Handle("/auth/verify-otp", otpLimit(http.HandlerFunc(adminH.AdminVerifyOTPHandler))).Methods("POST")
		admin.Handle("/auth/resend-otp", otpLimit(http.HandlerFunc(adminH.AdminResendOTPHandler))).Methods("POST")
		admin.Handle("/auth/forgot-password", loginLimit(http.HandlerFunc(adminH.AdminForgotPasswordHandler))).Methods("POST")
		admin.Handle("/auth/reset-password", loginLimit(http.HandlerFunc(adminH.AdminResetPasswordHandler))).Methods("POST")

		ar := authed(models.KindAdmin, admin)
		ar.HandleFunc("/auth/me", adminH.AdminMeHandler).Methods("GET")
		ar.HandleFunc("/auth/change-password", adminH.AdminChangePasswordHandler).Methods("PUT")

		owner := ar.NewRoute().Subrouter()
		owner.Use(api.RequireRole(models.RoleOwner))
		owner.HandleFunc("/admins", adminH.ListAdminsHandler).Methods("GET")
		owner.HandleFunc("/admins", adminH.CreateAdminHandler).Methods("POST")

		ar.HandleFunc("/users", userH.UsersHandler).Methods("GET")
		ar.HandleFunc("/users/{id}", userH.UserByIDHandler).Methods("GET")
		ar.HandleFunc("/users/{id}/status", userH.UpdateUserStatusHandler).Methods("PUT")
		ar.HandleFunc("/users/{id}", userH.DeleteUserHandler).Methods("DELETE")

		ar.HandleFunc("/developers", devAdminH.DevelopersHandler).Methods("GET")
		ar.HandleFunc("/developers/{id}", devAdminH.DeveloperByIDHandler).Methods("GET")
		ar.HandleFunc("/developers/{id}/status", devAdminH.UpdateDeveloperStatusHandler).Methods("PUT")
		ar.HandleFunc("/developers/{id}", devAdminH.DeleteDeveloperHandler).Methods("DELETE")

		ar.HandleFunc("/projects", projectH.ProjectsHandler).Methods("GET")
		ar.HandleFunc("/projects/{id}", projectH.ProjectByIDHandler).Methods("GET")
		ar.HandleFunc("/projects/{id}/status", projectH.UpdateProjectStatusHandler).Methods("PUT")
		ar.HandleFunc("/projects/{id}/assign", projectH.AssignProjectHandler).Methods("PUT")
		ar.HandleFunc("/projects/{id}/deadlines", projectH.ProjectDeadlinesHandler).Methods("GET")
		ar.HandleFunc("/projects/{id}/deadlines", projectH.CreateDeadlineHandler).Methods("POST")
		ar.HandleFunc("/deadlines/{id}/complete", projectH.CompleteDeadlineHandler).Methods("PUT")

		ar.HandleFunc("/earnings", earningH.EarningsHandler).Methods("GET")
		ar.HandleFunc("/earnings", earningH.CreateEarningHandler).Methods("POST")
		ar.HandleFunc("/earnings/{id}/status", earningH.UpdateEarningStatusHandler).Methods("PUT")
		ar.HandleFunc("/withdrawals", earningH.WithdrawalsHandler).Methods("GET")
		ar.HandleFunc("/withdrawals/{id}/status", earningH.UpdateWithdrawalStatusHandler).Methods("PUT")

		ar.HandleFunc("/analytics/overview", analyticsH.OverviewHandler).Methods("GET")
		ar.HandleFunc("/analytics/revenue", analyticsH.RevenueHandler).Methods("GET")
		ar.HandleFunc("/analytics/top-developers", analyticsH.TopDevelopersHandler).Methods("GET")

		notificationRoutes(ar, notificationH)
	}

	if a.Config.HasService("client") {
		client := rest.PathPrefix("/client").Subrouter()
		client.Handle("/auth/register", loginLimit(http.HandlerFunc(clientH.RegisterHandler))).Methods("POST")
		client.Handle("/auth/login", loginLimit(http.HandlerFunc(clientH.LoginHandler))).Methods("POST")
		client.HandleFunc("/payments/webhook", clientH.WebhookHandler).Methods("POST")

		cr := authed(models.KindUser, client)
		cr.HandleFunc("/projects", clientH.ProjectsHandler).Methods("GET")
		cr.HandleFunc("/projects", clientH.CreateProjectHandler).Methods("POST")
		cr.HandleFunc("/projects/{id}", clientH.ProjectHandler).Methods("GET")
		cr.HandleFunc("/projects/{id}/deadlines", clientH.ProjectDeadlinesHandler).Methods("GET")
		cr.HandleFunc("/projects/{id}/checkout", clientH.CheckoutHandler).Methods("POST")

		notificationRoutes(cr, notificationH)
	}

	if a.Config.HasService("developer") {
		dev := rest.PathPrefix("/developer").Subrouter()
		dev.Handle("/auth/register", loginLimit(http.HandlerFunc(developerH.RegisterHandler))).Methods("POST")
		dev.Handle("/auth/login", loginLimit(http.HandlerFunc(developerH.LoginHandler))).Methods("POST")

		dr := authed(models.KindDeveloper, dev)
		dr.HandleFunc("/assignments", developerH.AssignmentsHandler).Methods("GET")
		dr.HandleFunc("/assignments/{id}/accept", developerH.AcceptAssignmentHandler).Methods("PUT")
		dr.HandleFunc("/assignments/{id}/reject", developerH.RejectAssignmentHandler).Methods("PUT")
		dr.HandleFunc("/projects/{id}/status", developerH.UpdateProjectStatusHandler).Methods("PUT")
		dr.HandleFunc("/earnings", developerH.EarningsHandler).Methods("GET")
		dr.HandleFunc("/earnings/summary", developerH.EarningsSummaryHandler).Methods("GET")
		dr.HandleFunc("/earnings/analytics", developerH.EarningsAnalyticsHandler).Methods("GET")
		dr.HandleFunc("/withdrawals", developerH.WithdrawalsHandler).Methods("GET")
		dr.HandleFunc("/withdrawals", developerH.CreateWithdrawalHandler).Methods("POST")
		dr.HandleFunc("/uploads/signature", developerH.UploadSignatureHandler).Methods("POST")
		dr.HandleFunc("/deadlines", developerH.DeadlinesHandler).Methods("GET")

		notificationRoutes(dr, notificationH)
	}

	return r
}

func notificationRoutes(r *mux.Router, n Notification) {
	r.HandleFunc("/notifications", n.NotificationsHandler).Methods("GET")
	r.HandleFunc("/notifications/read-all", n.MarkAllNotificationsReadHandler).Methods("PUT")
	r.HandleFunc("/notifications/{id}/read", n.MarkNotificationReadHandler).Methods("PUT")
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {
	if a.Config.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.client, a.tx = client, client
	zap.S().Info("webnest-api has connected to the database")

	if a.Config.OwnerEmail != "" {
		if err := databases.EnsureOwnerAdmin(ctx, databases.NewAdminDatabase(a.dbHelper), a.Config.OwnerEmail, a.Config.OwnerPassword); err != nil {
			return fmt.Errorf("bootstrap owner admin: %w", err)
		}
	} else {
		zap.S().Warn("ADMIN_OWNER_EMAIL is not set, skipping owner bootstrap")
	}

	a.mailer = email.NewFromConfig(a.Config.Mail)

	gateway, err := payments.NewStripeGateway(a.Config.StripeSecretKey, a.Config.StripeWebhookSecret)
	if err != nil {
		zap.S().Warnw("payments disabled", "error", err)
	} else {
		a.payments = gateway
	}

	// initialize api router
	a.initializeRoutes()

	if a.Config.RunScheduler {
		a.Scheduler = scheduler.NewScheduler(
			databases.NewDeadlineDatabase(a.dbHelper),
			databases.NewDeveloperDatabase(a.dbHelper),
			databases.NewSchedulerLockDatabase(a.dbHelper),
			notify.NewService(databases.NewNotificationDatabase(a.dbHelper), a.hub),
			a.mailer,
			a.tokens,
		)
	}
	return nil
}

// Close disconnects from the database
func (a *App) Close(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}
