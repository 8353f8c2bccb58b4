package risk

// Decide maps an assessment to a decision. Rules are checked in order and the
// first match wins:
//
//  1. any signal carries a force_block evidence tag => BLOCK, reason = the tag
//  2. compositeScore >= block threshold             => BLOCK
//  3. compositeScore >= challenge threshold         => CHALLENGE_OTP
//  4. otherwise                                     => ALLOW
//
// The returned reason is empty unless a kill-switch fired.
func Decide(a *RiskAssessment, t Thresholds) (Decision, string) {
	for _, name := range a.SignalNames() {
		if tag, ok := a.Signals[name].ForceBlockEvidence(); ok {
			return DecisionBlock, tag
		}
	}

	switch {
	case a.CompositeScore >= t.Block:
		return DecisionBlock, ""
	case a.CompositeScore >= t.Challenge:
		return DecisionChallengeOTP, ""
	default:
		return DecisionAllow, ""
	}
}
