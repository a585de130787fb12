package httpapi

import (
	"context"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/realtime"
	"storefront/internal/service"
)

// HealthCheck зависимость, проверяемая в /health
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	Catalog       service.Catalog
	Orders        *service.OrderService
	Deliveries    *service.DeliveryService
	Users         *service.UserService
	Dashboard     *service.DashboardService
	Reviews       *service.ReviewService
	Wishlist      *service.WishlistService
	Promotions    *service.PromotionService
	Notifications *notify.Dispatcher
	Broker        realtime.Broker
	Issuer        *auth.Issuer
	Metrics       *metrics.Metrics
	Checks        []HealthCheck
	Config        *config.Config
	Logger        *zap.Logger
}

type Server struct {
	engine        *gin.Engine
	catalog       service.Catalog
	orders        *service.OrderService
	deliveries    *service.DeliveryService
	users         *service.UserService
	dashboard     *service.DashboardService
	reviews       *service.ReviewService
	wishlist      *service.WishlistService
	promotions    *service.PromotionService
	notifications *notify.Dispatcher
	broker        realtime.Broker
	issuer        *auth.Issuer
	metrics       *metrics.Metrics
	checks        []HealthCheck
	cfg           *config.Config
	logger        *zap.Logger
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	useJSONFieldNames()

	r := gin.New()
	s := &Server{
		engine:        r,
		catalog:       d.Catalog,
		orders:        d.Orders,
		deliveries:    d.Deliveries,
		users:         d.Users,
		dashboard:     d.Dashboard,
		reviews:       d.Reviews,
		wishlist:      d.Wishlist,
		promotions:    d.Promotions,
		notifications: d.Notifications,
		broker:        d.Broker,
		issuer:        d.Issuer,
		metrics:       d.Metrics,
		checks:        d.Checks,
		cfg:           d.Config,
		logger:        d.Logger,
	}
	r.Use(s.accessLog(), gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

// useJSONFieldNames ошибки валидации называют поля так же, как JSON запроса
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

func (s *Server) registerRoutes() {
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/health", s.health)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.engine.Group("/api")
	protected := s.protect()
	adminOnly := requireRoles(domain.RoleAdmin)
	staffOnly := requireRoles(domain.RoleAdmin, domain.RoleManager)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", s.register)
		authGroup.POST("/login", s.login)
		authGroup.GET("/me", protected, s.me)
	}

	products := api.Group("/products")
	{
		products.GET("", s.listProducts)
		products.GET("/:id", s.getProduct)
		products.POST("", protected, adminOnly, s.createProduct)
		products.PUT("/:id", protected, adminOnly, s.updateProduct)
		products.DELETE("/:id", protected, adminOnly, s.deleteProduct)
	}

	orders := api.Group("/orders")
	{
		orders.GET("/paystack/verify/:reference", s.verifyPayment)
		orders.GET("/paystack/callback", s.paymentCallback)
		orders.POST("/paystack/webhook", s.paymentWebhook)

		orders.POST("", protected, s.placeOrder)
		orders.GET("", protected, adminOnly, s.listOrders)
		orders.GET("/my-orders", protected, s.myOrders)
		orders.GET("/:orderId", protected, s.getOrder)
		orders.GET("/:orderId/track", protected, s.trackOrder)
	}

	delivery := api.Group("/delivery", protected)
	{
		delivery.GET("", staffOnly, s.listDeliveries)
		delivery.GET("/couriers/all", staffOnly, s.listCouriers)
		delivery.POST("", staffOnly, s.createDelivery)
		delivery.GET("/:orderId", s.getDelivery)
		delivery.PATCH("/:orderId/status", staffOnly, s.updateDeliveryStatus)
		delivery.PATCH("/:orderId/courier", staffOnly, s.assignCourier)
	}

	reviews := api.Group("/reviews")
	{
		reviews.GET("/:productId", s.listReviews)
		reviews.POST("", protected, s.createReview)
		reviews.PUT("/:reviewId", protected, s.updateReview)
		reviews.DELETE("/:reviewId", protected, s.deleteReview)
	}

	wishlist := api.Group("/wishlist", protected)
	{
		wishlist.GET("", s.myWishlist)
		wishlist.POST("", s.addToWishlist)
		wishlist.DELETE("", s.removeFromWishlist)
		wishlist.GET("/all", adminOnly, s.allWishlists)
	}

	promotions := api.Group("/promotions", protected)
	{
		promotions.GET("/validate", s.validatePromotion)
		promotions.GET("/all", adminOnly, s.listPromotions)
		promotions.POST("", adminOnly, s.createPromotion)
		promotions.PUT("/:id", adminOnly, s.updatePromotion)
		promotions.DELETE("/:id", adminOnly, s.deletePromotion)
	}

	notifications := api.Group("/notifications", protected)
	{
		notifications.GET("", s.listNotifications)
		notifications.GET("/all", adminOnly, s.listAllNotifications)
		notifications.POST("", adminOnly, s.sendNotification)
		notifications.PATCH("/:id/read", s.markNotificationRead)
		notifications.POST("/devices", s.registerDevice)
	}

	api.GET("/realtime/stream", protected, s.stream)
	api.GET("/admin/dashboard/overview", protected, adminOnly, s.dashboardOverview)
}
