package orchestrator

// State es un paso de la máquina de estados por cluster.
type State string

const (
	StateDiscover         State = "DISCOVER"
	StateSnapshotBefore   State = "SNAPSHOT_BEFORE"
	StateAlreadySatisfied State = "ALREADY_SATISFIED"
	StateMixedAbort       State = "MIXED_ABORT"
	StateNeedsChange      State = "NEEDS_CHANGE"
	StateMutateCluster    State = "MUTATE_CLUSTER"
	StateReconfigureHosts State = "RECONFIGURE_HOSTS"
	StateSnapshotAfter    State = "SNAPSHOT_AFTER"
	StateVerify           State = "VERIFY"
	StateRollback         State = "ROLLBACK"

	StateDoneSuccess        State = "DONE_SUCCESS"
	StateDoneRolledBack     State = "DONE_ROLLED_BACK"
	StateDoneRollbackFailed State = "DONE_ROLLBACK_FAILED"
	// StateSkipped: el cluster no entró al flujo (HA apagado, sin hosts,
	// versión no soportada, faltan credenciales, corrida cancelada).
	StateSkipped State = "SKIPPED"
	// StateDoneFailed: falló antes de que el inventario aceptara una
	// mutación, no hay nada que revertir.
	StateDoneFailed State = "DONE_FAILED"
)

// Terminal indica si s cierra el procesamiento de un cluster.
func (s State) Terminal() bool {
	switch s {
	case StateDoneSuccess, StateDoneRolledBack, StateDoneRollbackFailed, StateMixedAbort, StateSkipped, StateDoneFailed:
		return true
	}
	return false
}

// IsSkip indica si el estado terminal cuenta como cluster salteado y no como
// falla de la corrida.
func (s State) IsSkip() bool { return s == StateMixedAbort || s == StateSkipped }
