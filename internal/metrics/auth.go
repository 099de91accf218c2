package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth-domain Prometheus metrics. Defined in a standalone package to avoid
// import cycles between service packages and the HTTP layer.

var (
	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Intentos de login por método y resultado",
	}, []string{"method", "result"}) // method: password|mfa|superuser|provider name

	TokensIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Tokens emitidos",
	})

	TokenVerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_verify_total",
		Help: "Verificaciones de token por resultado",
	}, []string{"result"}) // result: ok|invalid|expired

	OTPIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_otp_issued_total",
		Help: "Códigos OTP emitidos por propósito",
	}, []string{"purpose"})

	FederationExchangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_federation_exchanges_total",
		Help: "Intercambios OAuth por provider y resultado",
	}, []string{"provider", "result"})

	TenantCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tenant_cache_total",
		Help: "Lookups de tenant por API key, hit o miss de cache",
	}, []string{"outcome"})

	DeletionTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_deletion_transitions_total",
		Help: "Transiciones del ciclo de borrado de cuenta",
	}, []string{"transition"}) // requested|confirmed|cancelled
)

// RegisterAuth registers the auth metrics on the given registry (or default if nil).
func RegisterAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		LoginsTotal,
		TokensIssuedTotal,
		TokenVerifyTotal,
		OTPIssuedTotal,
		FederationExchangesTotal,
		TenantCacheTotal,
		DeletionTransitionsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
