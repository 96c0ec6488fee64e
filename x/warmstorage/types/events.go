package types

// Event types
const (
	TypeEvtDataSetCreated        = "data_set_created"
	TypeEvtPiecesAdded           = "pieces_added"
	TypeEvtPiecesScheduledRemove = "pieces_scheduled_remove"
	TypeEvtDataSetDeleted        = "data_set_deleted"
	TypeEvtPayeeChanged          = "data_set_payee_changed"
	TypeEvtServiceTerminated     = "service_terminated"
	TypeEvtRailTerminated        = "rail_terminated"
	TypeEvtProvingPeriodStarted  = "proving_period_started"
	TypeEvtPossessionProven      = "possession_proven"
	TypeEvtFaultRecord           = "fault_record"
	TypeEvtRailRateUpdated       = "rail_rate_updated"
	TypeEvtServiceUpgraded       = "service_upgraded"

	AttributeKeyDataSetID       = "data_set_id"
	AttributeKeyClientDataSetID = "client_data_set_id"
	AttributeKeyPdpRailID       = "pdp_rail_id"
	AttributeKeyCacheMissRailID = "cache_miss_rail_id"
	AttributeKeyCdnRailID       = "cdn_rail_id"
	AttributeKeyRailID          = "rail_id"
	AttributeKeyPayer           = "payer"
	AttributeKeyPayee           = "payee"
	AttributeKeyOldPayee        = "old_payee"
	AttributeKeyNewPayee        = "new_payee"
	AttributeKeyWithCDN         = "with_cdn"
	AttributeKeyFirstAdded      = "first_added"
	AttributeKeyPieceCount      = "piece_count"
	AttributeKeyPieceIDs        = "piece_ids"
	AttributeKeyNonce           = "nonce"
	AttributeKeyEndEpoch        = "payment_end_epoch"
	AttributeKeyTerminator      = "terminator"
	AttributeKeyDeadline        = "deadline"
	AttributeKeyChallengeEpoch  = "challenge_epoch"
	AttributeKeyLeafCount       = "leaf_count"
	AttributeKeyPeriod          = "period"
	AttributeKeyFaultPeriods    = "fault_periods"
	AttributeKeyRate            = "rate"
	AttributeKeyVersion         = "version"
)
