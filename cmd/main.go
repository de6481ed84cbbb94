// SPDX-License-Identifier: BSL-1.1

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/slotforge/pkg/cache"
	"github.com/slotforge/pkg/database"
	"github.com/slotforge/pkg/eventbus"
	"github.com/slotforge/pkg/jwt"
	"github.com/slotforge/pkg/logger"
	"github.com/slotforge/pkg/middleware"
	"github.com/slotforge/pkg/policy"

	"github.com/slotforge/slotforge/internal/config"
	"github.com/slotforge/slotforge/internal/push"
	"github.com/slotforge/slotforge/internal/scheduler"

	availabilityHandlers "github.com/slotforge/slotforge/internal/availability/handlers"
	availabilityService "github.com/slotforge/slotforge/internal/availability/service"

	identityHandlers "github.com/slotforge/slotforge/internal/identity/handlers"
	identityRepo "github.com/slotforge/slotforge/internal/identity/repository"
	identityService "github.com/slotforge/slotforge/internal/identity/service"

	mfaHandlers "github.com/slotforge/slotforge/internal/mfa/handlers"
	mfaRepo "github.com/slotforge/slotforge/internal/mfa/repository"
	mfaService "github.com/slotforge/slotforge/internal/mfa/service"

	notificationHandlers "github.com/slotforge/slotforge/internal/notification/handlers"
	notificationRepo "github.com/slotforge/slotforge/internal/notification/repository"
	notificationService "github.com/slotforge/slotforge/internal/notification/service"

	passkeyHandlers "github.com/slotforge/slotforge/internal/passkey/handlers"
	passkeyRepo "github.com/slotforge/slotforge/internal/passkey/repository"
	passkeyService "github.com/slotforge/slotforge/internal/passkey/service"

	reservationHandlers "github.com/slotforge/slotforge/internal/reservation/handlers"
	reservationRepo "github.com/slotforge/slotforge/internal/reservation/repository"
	reservationService "github.com/slotforge/slotforge/internal/reservation/service"

	resourceHandlers "github.com/slotforge/slotforge/internal/resource/handlers"
	resourceRepo "github.com/slotforge/slotforge/internal/resource/repository"
	resourceService "github.com/slotforge/slotforge/internal/resource/service"

	waitlistHandlers "github.com/slotforge/slotforge/internal/waitlist/handlers"
	waitlistRepo "github.com/slotforge/slotforge/internal/waitlist/repository"
	waitlistService "github.com/slotforge/slotforge/internal/waitlist/service"

	webhookHandlers "github.com/slotforge/slotforge/internal/webhook/handlers"
	webhookRepo "github.com/slotforge/slotforge/internal/webhook/repository"
	webhookService "github.com/slotforge/slotforge/internal/webhook/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.LogLevel, "json")
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, &database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close(pool)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(ctx, &database.RedisConfig{URL: cfg.RedisURL})
		if err != nil {
			log.Warn("redis unavailable, continuing without cache or rate limiting", "error", err)
		} else {
			redisClient = client
			defer database.CloseRedis(client)
		}
	}

	jwtManager, err := jwt.NewManager(&jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		AccessExpiry:   cfg.JWT.AccessExpiry,
		RefreshExpiry:  cfg.JWT.RefreshExpiry,
		Issuer:         cfg.JWT.Issuer,
	})
	if err != nil {
		log.Error("failed to initialize jwt manager", "error", err)
		os.Exit(1)
	}

	var l2Cache cache.Cache
	if redisClient != nil {
		l2Cache = cache.NewRedisCache(redisClient)
	} else {
		l2Cache = &cache.NoOpCache{}
	}
	availabilityCache := cache.NewTiered(cache.NewMemoryCache(time.Minute, 5*time.Minute), l2Cache)

	bus := eventbus.New(eventbus.Config{
		BufferSize:  256,
		NATSURL:     cfg.NATSURL,
		NATSSubject: "slotforge.events",
	}, log)
	defer bus.Close()

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// ---------- repositories ----------
	userRepo := identityRepo.NewUserRepository(pool)
	tokenRepo := identityRepo.NewTokenRepository(pool)
	setupRepo := identityRepo.NewSetupRepository(pool)
	mfaRepository := mfaRepo.NewMFARepository(pool)
	passkeyRepository := passkeyRepo.NewPasskeyRepository(pool)
	resourceRepository := resourceRepo.NewResourceRepository(pool)
	scheduleRepository := resourceRepo.NewScheduleRepository(pool)
	reservationRepository := reservationRepo.NewReservationRepository(pool)
	recurrenceRepository := reservationRepo.NewRecurrenceRepository(pool)
	waitlistRepository := waitlistRepo.NewWaitlistRepository(pool)
	notificationRepository := notificationRepo.NewNotificationRepository(pool)
	webhookRepository := webhookRepo.NewWebhookRepository(pool)

	// ---------- services ----------
	notificationSvc := notificationService.NewNotificationService(notificationRepository, bus, log)

	var searchIndex resourceService.SearchIndex
	if cfg.MeilisearchURL != "" {
		searchIndex = resourceService.NewMeilisearchIndex(cfg.MeilisearchURL, cfg.MeilisearchAPIKey, "resources")
	}
	resourceSvc := resourceService.NewResourceService(resourceRepository, scheduleRepository, availabilityCache, searchIndex, bus, log)

	waitlistSvc := waitlistService.NewWaitlistService(waitlistRepository, nil, notificationSvc, bus, &cfg.Waitlist, log)

	reservationSvc := reservationService.NewReservationService(
		reservationRepository, recurrenceRepository, resourceRepository, scheduleRepository,
		waitlistSvc, bus, &cfg.Reservation, log,
	)
	waitlistSvc.SetReservationCreator(reservationSvc)

	availabilitySvc := availabilityService.NewAvailabilityService(resourceRepository, scheduleRepository, reservationRepository, &cfg.Availability)

	mfaSvc := mfaService.NewMFAService(mfaRepository, userRepo, cfg, log)
	authSvc := identityService.NewAuthService(userRepo, tokenRepo, setupRepo, jwtManager, mfaSvc, bus, cfg, log)

	passkeySvc, err := passkeyService.NewPasskeyService(passkeyRepository, userRepo, cfg, availabilityCache, log)
	if err != nil {
		log.Error("failed to initialize passkey service", "error", err)
		os.Exit(1)
	}

	dispatcher := webhookService.NewDispatcher(webhookRepository, &cfg.Webhook, log)
	dispatcher.Start(ctx, cfg.Webhook.WorkerCount)
	defer dispatcher.Stop()

	sched := scheduler.New(reservationSvc, waitlistSvc, tokenRepo, resourceSvc, bus, cfg.Background, log)
	go sched.Run(ctx)

	forwardToWebhooks(ctx, bus, dispatcher)

	// ---------- handlers ----------
	authHandler := identityHandlers.NewAuthHandler(authSvc, log)
	mfaHandler := mfaHandlers.NewMFAHandler(mfaSvc, log)
	passkeyHandler := passkeyHandlers.NewPasskeyHandler(passkeySvc, authSvc, log)
	resourceHandler := resourceHandlers.NewResourceHandler(resourceSvc, log)
	availabilityHandler := availabilityHandlers.NewAvailabilityHandler(availabilitySvc, log)
	healthHandler := availabilityHandlers.NewHealthHandler()
	reservationHandler := reservationHandlers.NewReservationHandler(reservationSvc, log)
	waitlistHandler := waitlistHandlers.NewWaitlistHandler(waitlistSvc, log)
	notificationHandler := notificationHandlers.NewNotificationHandler(notificationSvc, log)
	webhookHandler := webhookHandlers.NewWebhookHandler(webhookRepository, dispatcher, log)
	pushHandler := push.NewHandler(bus, jwtManager, log)

	authMiddleware := middleware.Auth(jwtManager, func(ctx context.Context, userID string) (int, error) {
		return authSvc.CurrentPasswordVersion(ctx, userID)
	})

	r := chi.NewRouter()

	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.LimitRequestSize(1 * 1024 * 1024))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Setup-Token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/ws", pushHandler.Serve)

	r.Route("/", func(r chi.Router) {
		// ---------- public identity routes ----------
		r.Group(func(r chi.Router) {
			if cfg.RateLimitEnabled {
				r.With(rateLimiter.Limit(middleware.RateLimitConfig{
					Requests: 5, Window: time.Minute, KeyFunc: middleware.CombinedKeyFunc,
				})).Post("/token", authHandler.Token)
				r.With(rateLimiter.Limit(middleware.RateLimitConfig{
					Requests: 3, Window: time.Minute, KeyFunc: middleware.CombinedKeyFunc,
				})).Post("/register", authHandler.Register)
			} else {
				r.Post("/token", authHandler.Token)
				r.Post("/register", authHandler.Register)
			}
			r.Post("/token/refresh", authHandler.Refresh)
			r.Get("/setup/status", authHandler.SetupStatus)
			r.Post("/setup/initialize", authHandler.Initialize)
			r.Post("/passkeys/login/begin", passkeyHandler.BeginDiscoverableAuthentication)
			r.Post("/passkeys/login/finish", passkeyHandler.FinishAuthentication)
		})

		// ---------- authenticated routes ----------
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.Post("/logout", authHandler.Logout)
			r.Post("/auth/change-password", authHandler.ChangePassword)
			r.Get("/me", authHandler.Me)

			r.With(middleware.RequireRole(policy.RoleAdmin)).Get("/admin/users", authHandler.ListUsers)
			r.With(middleware.RequireRole(policy.RoleAdmin)).Patch("/admin/users/{id}/role", authHandler.UpdateRole)
			r.With(middleware.RequireRole(policy.RoleAdmin)).Delete("/admin/users/{id}/mfa", mfaHandler.AdminDisable)

			r.Post("/auth/mfa/setup", mfaHandler.BeginSetup)
			r.Post("/auth/mfa/verify", mfaHandler.FinishSetup)
			r.Post("/auth/mfa/disable", mfaHandler.Disable)
			r.Get("/auth/mfa/status", mfaHandler.GetStatus)
			r.Post("/auth/mfa/backup-codes", mfaHandler.RegenerateBackupCodes)

			r.Post("/passkeys/register/begin", passkeyHandler.BeginRegistration)
			r.Post("/passkeys/register/finish", passkeyHandler.FinishRegistration)
			r.Get("/passkeys", passkeyHandler.List)
			r.Patch("/passkeys/{id}", passkeyHandler.Rename)
			r.Delete("/passkeys/{id}", passkeyHandler.Delete)

			r.With(middleware.RequirePolicy(policy.KindResource, policy.ActionCreate)).Post("/resources", resourceHandler.Create)
			r.Get("/resources", resourceHandler.List)
			r.Get("/resources/search", resourceHandler.Search)
			r.Get("/resources/summary", availabilityHandler.Summary)
			r.Get("/resources/{id}", resourceHandler.Get)
			r.With(middleware.RequirePolicy(policy.KindResource, policy.ActionUpdate)).Put("/resources/{id}", resourceHandler.Update)
			r.With(middleware.RequirePolicy(policy.KindResource, policy.ActionDelete)).Delete("/resources/{id}", resourceHandler.Delete)
			r.With(middleware.RequirePolicy(policy.KindResource, policy.ActionManage)).Post("/resources/{id}/business-hours", resourceHandler.SetBusinessHours)
			r.With(middleware.RequirePolicy(policy.KindResource, policy.ActionManage)).Post("/resources/{id}/blackouts", resourceHandler.CreateBlackout)
			r.With(middleware.RequirePolicy(policy.KindResource, policy.ActionManage)).Delete("/resources/{id}/blackouts/{blackout_id}", resourceHandler.DeleteBlackout)
			r.With(middleware.RequirePolicy(policy.KindResource, policy.ActionManage)).Post("/business-hours", resourceHandler.SetBusinessHours)
			r.With(middleware.RequirePolicy(policy.KindResource, policy.ActionManage)).Post("/blackouts", resourceHandler.CreateBlackout)
			r.Get("/resources/{id}/schedule", availabilityHandler.Schedule)
			r.Get("/resources/{id}/availability", availabilityHandler.Availability)
			r.Get("/resources/{id}/status", availabilityHandler.Status)
			r.Get("/resources/{id}/available-slots", availabilityHandler.AvailableSlots)
			r.Get("/resources/{id}/next-available", availabilityHandler.NextAvailable)

			r.With(middleware.RequirePolicy(policy.KindReservation, policy.ActionCreate)).Post("/reservations", reservationHandler.Create)
			r.With(middleware.RequirePolicy(policy.KindReservation, policy.ActionCreate)).Post("/reservations/recurring", reservationHandler.CreateRecurring)
			r.Get("/reservations/my", reservationHandler.ListMine)
			r.Post("/reservations/{id}/cancel", reservationHandler.Cancel)
			r.Get("/reservations/{id}/history", reservationHandler.History)

			r.With(middleware.RequirePolicy(policy.KindWaitlist, policy.ActionCreate)).Post("/waitlist", waitlistHandler.Join)
			r.Get("/waitlist", waitlistHandler.ListMine)
			r.Post("/waitlist/{id}/accept", waitlistHandler.Accept)
			r.Delete("/waitlist/{id}", waitlistHandler.Leave)

			r.Get("/notifications", notificationHandler.ListMine)
			r.Post("/notifications/{id}/read", notificationHandler.MarkRead)
			r.Post("/notifications/mark-all-read", notificationHandler.MarkAllRead)

			r.Route("/webhooks", func(r chi.Router) {
				r.Use(middleware.RequirePolicy(policy.KindWebhook, policy.ActionManage))
				r.Post("/", webhookHandler.Register)
				r.Get("/", webhookHandler.List)
				r.Patch("/{id}", webhookHandler.Update)
				r.Delete("/{id}", webhookHandler.Delete)
				r.Get("/{id}/deliveries", webhookHandler.ListDeliveries)
				r.Post("/{id}/deliveries/{deliveryId}/retry", webhookHandler.RetryDelivery)
			})
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("slotforge listening", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// forwardToWebhooks subscribes to every published event and feeds it
// into the webhook dispatcher, decoupling the bus from the dispatcher's
// concrete type.
func forwardToWebhooks(ctx context.Context, bus *eventbus.Bus, dispatcher *webhookService.Dispatcher) {
	sub := bus.Subscribe("webhook-dispatcher", "*")
	go func() {
		for {
			select {
			case <-ctx.Done():
				bus.Unsubscribe("webhook-dispatcher")
				return
			case event, ok := <-sub.Events():
				if !ok {
					return
				}
				dispatcher.HandleEvent(ctx, event.Type, event.Data)
			}
		}
	}()
}
