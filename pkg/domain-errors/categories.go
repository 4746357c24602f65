package domainerrors

var authorizationCodes = map[Code]bool{
	CodePlatformPaused:            true,
	CodeUnauthorizedFieldAgent:    true,
	CodeUnauthorizedAdmin:         true,
	CodeUnauthorizedPoolAuthority: true,
	CodeUnauthorizedBeneficiary:   true,
}

var stateCodes = map[Code]bool{
	CodeDuplicateApproval:            true,
	CodeMaxVerifiersReached:          true,
	CodeAlreadyVerified:              true,
	CodeCannotVerifyRejected:         true,
	CodeBeneficiaryFlagged:           true,
	CodeInvalidStatusTransition:      true,
	CodeBeneficiaryNotVerified:       true,
	CodeRegistrationPhaseLocked:      true,
	CodePoolRegistrationNotLocked:    true,
	CodePoolClosed:                   true,
	CodeAlreadyRegistered:            true,
	CodeBeneficiaryNotRegistered:     true,
	CodeNoBeneficiaries:              true,
	CodeDistributionAlreadyCompleted: true,
	CodeDistributionExists:           true,
	CodeDistributionAlreadyClaimed:   true,
	CodeDistributionAlreadyExpired:   true,
	CodeDistributionPartiallyClaimed: true,
	CodeDistributionNotExpired:       true,
	CodeTimeLockNotExpired:           true,
	CodeDepositsClosed:               true,
}

var eligibilityCodes = map[Code]bool{
	CodeIneligibleBeneficiary: true,
	CodeDisasterMismatch:      true,
	CodeInvalidTokenMint:      true,
}

var arithmeticCodes = map[Code]bool{
	CodeArithmeticOverflow:    true,
	CodeArithmeticUnderflow:   true,
	CodeDivisionByZero:        true,
	CodeInsufficientPoolFunds: true,
}

var boundsCodes = map[Code]bool{
	CodeStringTooLong:               true,
	CodeVectorTooLong:               true,
	CodeFlagReasonRequired:          true,
	CodeInvalidFamilySize:           true,
	CodeInvalidDamageSeverity:       true,
	CodeInvalidLocation:             true,
	CodeInvalidDistributionPercents: true,
	CodeInvalidDistributionType:     true,
}

func IsAuthorizationCode(c Code) bool { return authorizationCodes[c] }
func IsStateCode(c Code) bool         { return stateCodes[c] }
func IsEligibilityCode(c Code) bool   { return eligibilityCodes[c] }
func IsArithmeticCode(c Code) bool    { return arithmeticCodes[c] }
func IsBoundsCode(c Code) bool        { return boundsCodes[c] }
