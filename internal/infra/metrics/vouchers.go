package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		voucherTransitionsTotal,
		voucherVerificationsTotal,
		voucherRegistrationsTotal,
	)
}

var (
	voucherTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_transitions_total",
			Help: "Voucher status transitions by edge and result.",
		},
		[]string{"from", "to", "result"}, // result: error code or 'ok'
	)

	voucherVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_verifications_total",
			Help: "Scanned payload verifications by result.",
		},
		[]string{"result"}, // 'ok', 'malformedpayload', 'signaturemismatch'
	)

	voucherRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_registrations_total",
			Help: "Voucher registrations by result, including serial collisions retried.",
		},
		[]string{"result"}, // 'ok', 'collision', 'failed'
	)
)

func IncTransition(from, to, result string) {
	voucherTransitionsTotal.WithLabelValues(norm(from), norm(to), norm(result)).Inc()
}

func IncVerification(result string) {
	voucherVerificationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncRegistration(result string) {
	voucherRegistrationsTotal.WithLabelValues(norm(result)).Inc()
}
