package core

import "pharmacore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(PrescriptionTransitionRule())
	engine.Register(OrderTransitionRule())
	engine.Register(StockLevelRule())
	return engine
}

func decodeChange[T any](payload any) (T, bool) {
	v, ok := payload.(T)
	return v, ok
}
