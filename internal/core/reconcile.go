package core

// reconcile.go merges a validated batch into the catalog.
//
// A run moves through PENDING -> PARTITIONED -> APPLIED -> LOGGED:
//
//  1. Load every (clave, id) pair once and classify each product as a create
//     (clave absent) or an update (clave present, target is the store id).
//  2. Insert creates in fixed-size chunks with duplicate tolerance.
//  3. Apply updates with bounded concurrency. Only nombre, precio and
//     categoria are sent; activo and imagen are curated by hand.
//  4. Write exactly one ImportRun.
//
// Row and chunk failures are counted and itemized (up to a cap) without
// stopping the batch. Anything that prevents the batch from continuing
// (identity load failure, cancellation) jumps straight to LOGGED with a
// FALLIDO record and is returned as *FatalError. Work already flushed to the
// store stays committed.

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/catalogo/internal/logging"
	"github.com/google/uuid"
)

// ReconcilePhase is the state of a reconciliation run.
type ReconcilePhase string

const (
	PhasePending     ReconcilePhase = "pending"
	PhasePartitioned ReconcilePhase = "partitioned"
	PhaseApplied     ReconcilePhase = "applied"
	PhaseLogged      ReconcilePhase = "logged"
)

const (
	// DefaultCreateChunkSize bounds the rows sent in one bulk insert.
	DefaultCreateChunkSize = 1000

	// DefaultUpdateWidth bounds concurrent updates, and with them pool usage.
	DefaultUpdateWidth = 50

	// DefaultErrorDetailLimit bounds the itemized errors on an ImportRun.
	DefaultErrorDetailLimit = 50

	// auditWriteTimeout bounds the audit insert, which runs detached from the
	// request context so a cancelled import still leaves a record.
	auditWriteTimeout = 10 * time.Second
)

// ReconcilerConfig tunes batch sizes. Zero values use the defaults.
type ReconcilerConfig struct {
	CreateChunkSize  int
	UpdateWidth      int
	ErrorDetailLimit int
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.CreateChunkSize <= 0 {
		c.CreateChunkSize = DefaultCreateChunkSize
	}
	if c.UpdateWidth <= 0 {
		c.UpdateWidth = DefaultUpdateWidth
	}
	if c.ErrorDetailLimit <= 0 {
		c.ErrorDetailLimit = DefaultErrorDetailLimit
	}
	return c
}

// Reconciler applies validated batches to a Store.
type Reconciler struct {
	store Store
	cfg   ReconcilerConfig
	now   func() time.Time
}

// NewReconciler creates a Reconciler over store.
func NewReconciler(store Store, cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{
		store: store,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
	}
}

// ImportMeta describes where a batch came from.
type ImportMeta struct {
	// ID is used as the ImportRun id; a new one is generated when zero.
	ID         uuid.UUID
	FileName   string
	ImportedBy string
	ArchiveKey string
}

// ReconcileResult is returned for every run that reaches LOGGED normally.
type ReconcileResult struct {
	Creados      int           `json:"creados"`
	Actualizados int           `json:"actualizados"`
	Errores      []ImportError `json:"errores"`
	DuracionMs   int64         `json:"duracionMs"`
	Run          ImportRun     `json:"-"`
}

// pendingUpdate pairs a batch position with the store id it resolves to.
type pendingUpdate struct {
	index int
	id    uuid.UUID
}

// Run reconciles products against the store and records the outcome.
func (r *Reconciler) Run(ctx context.Context, products []ValidatedProduct, meta ImportMeta) (*ReconcileResult, error) {
	start := r.now()

	run := ImportRun{
		ID:            meta.ID,
		NombreArchivo: clipRunes(meta.FileName, MaxFileNameLen),
		TotalFilas:    len(products),
		ImportadoPor:  clipRunes(meta.ImportedBy, maxImportadoPorLen),
		ArchivoObjeto: meta.ArchiveKey,
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	logger := logging.WithFields(ctx,
		"import_id", run.ID,
		"archivo", meta.FileName,
		"importado_por", meta.ImportedBy,
	)

	var (
		phase        = PhasePending
		creados      int
		actualizados int
		settle       = NewSettlement(r.cfg.ErrorDetailLimit)
	)

	abort := func(cause error) (*ReconcileResult, error) {
		run.ProductosCreados = creados
		run.ProductosActualizados = actualizados
		run.ErroresCount = max(len(products)-creados-actualizados, 1)
		run.ErroresDetalle = []ImportError{{Index: 0, Error: cause.Error()}}
		run.Estado = EstadoFallido
		run.DuracionMs = r.since(start)
		run.CreatedAt = r.now()

		if err := r.writeRun(ctx, &run); err != nil {
			logger.Error("failed to record aborted import", "error", err, "cause", cause)
		}
		logger.Error("import aborted",
			"phase", phase,
			"error", cause,
			"creados", creados,
			"actualizados", actualizados,
		)
		return nil, &FatalError{Phase: phase, Err: cause, Run: run}
	}

	identities, err := r.store.FindAllIdentities(ctx)
	if err != nil {
		return abort(fmt.Errorf("load catalog identities: %w", err))
	}

	creates, updates := partition(products, identities)
	phase = PhasePartitioned
	logger.Debug("batch partitioned", "creates", len(creates), "updates", len(updates))

	creados, err = r.applyCreates(ctx, products, creates, settle)
	if err != nil {
		return abort(err)
	}

	actualizados, err = r.applyUpdates(ctx, products, updates, settle)
	if err != nil {
		return abort(err)
	}
	phase = PhaseApplied

	run.ProductosCreados = creados
	run.ProductosActualizados = actualizados
	run.ErroresCount = settle.Failed
	run.ErroresDetalle = settle.Errors
	run.Estado = classify(settle.Failed, creados+actualizados)
	run.DuracionMs = r.since(start)
	run.CreatedAt = r.now()

	if err := r.writeRun(ctx, &run); err != nil {
		// The batch is already applied; a second record would break the
		// one-record-per-attempt rule, so only report.
		return nil, &FatalError{Phase: phase, Err: fmt.Errorf("write import run: %w", err), Run: run}
	}

	logger.Info("import reconciled",
		"phase", PhaseLogged,
		"estado", run.Estado,
		"creados", creados,
		"actualizados", actualizados,
		"errores", settle.Failed,
		"errores_truncados", settle.Truncated(),
		"duration_ms", run.DuracionMs,
	)

	return &ReconcileResult{
		Creados:      creados,
		Actualizados: actualizados,
		Errores:      settle.Errors,
		DuracionMs:   run.DuracionMs,
		Run:          run,
	}, nil
}

// applyCreates inserts new products chunk by chunk. A failed chunk counts
// all of its rows as errors and the next chunk still runs. Only context
// cancellation is returned as an error.
func (r *Reconciler) applyCreates(ctx context.Context, products []ValidatedProduct, creates []int, settle *Settlement) (int, error) {
	created := 0
	size := r.cfg.CreateChunkSize

	for start := 0; start < len(creates); start += size {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		end := min(start+size, len(creates))
		chunk := make([]ValidatedProduct, 0, end-start)
		for _, i := range creates[start:end] {
			chunk = append(chunk, products[i])
		}

		n, err := r.store.BulkInsert(ctx, chunk, BulkInsertOptions{SkipDuplicates: true})
		if err != nil {
			if ctx.Err() != nil {
				return created, fmt.Errorf("create chunk: %w", err)
			}
			settle.Fail(creates[start], end-start,
				fmt.Errorf("create failed for %d products starting at %s: %w", end-start, products[creates[start]].Clave, err))
			continue
		}
		created += int(n)
	}

	return created, nil
}

// applyUpdates patches existing products with at most UpdateWidth calls in
// flight. Every update settles independently.
func (r *Reconciler) applyUpdates(ctx context.Context, products []ValidatedProduct, updates []pendingUpdate, settle *Settlement) (int, error) {
	if len(updates) == 0 {
		return 0, ctx.Err()
	}

	outcomes := SettleAll(ctx, len(updates), r.cfg.UpdateWidth, func(ctx context.Context, i int) error {
		u := updates[i]
		return r.store.Update(ctx, u.id, importPatch(products[u.index]))
	})

	updated := 0
	for _, o := range outcomes {
		if o.OK() {
			updated++
			continue
		}
		u := updates[o.Index]
		settle.Fail(u.index, 1, fmt.Errorf("update failed for %s: %w", products[u.index].Clave, o.Err))
	}

	if err := ctx.Err(); err != nil {
		return updated, err
	}
	return updated, nil
}

// writeRun persists the audit record on a context that survives request
// cancellation.
func (r *Reconciler) writeRun(ctx context.Context, run *ImportRun) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	return r.store.CreateImportRun(ctx, run)
}

func (r *Reconciler) since(start time.Time) int64 {
	return r.now().Sub(start).Milliseconds()
}

// partition splits products into create positions and resolved updates.
func partition(products []ValidatedProduct, identities []Identity) ([]int, []pendingUpdate) {
	existing := make(map[string]uuid.UUID, len(identities))
	for _, ident := range identities {
		existing[strings.TrimSpace(ident.Clave)] = ident.ID
	}

	var creates []int
	var updates []pendingUpdate
	for i, p := range products {
		if id, ok := existing[strings.TrimSpace(p.Clave)]; ok {
			updates = append(updates, pendingUpdate{index: i, id: id})
			continue
		}
		creates = append(creates, i)
	}
	return creates, updates
}

// importPatch is the set of columns an import may overwrite.
func importPatch(p ValidatedProduct) ProductPatch {
	patch := ProductPatch{
		Nombre: &p.Nombre,
		Precio: &p.Precio,
	}
	if p.Categoria != "" {
		patch.Categoria = &p.Categoria
	}
	return patch
}

// maxImportadoPorLen matches the import_runs.importado_por column.
const maxImportadoPorLen = 255

// clipRunes shortens s to at most n runes so the audit row always fits.
func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// classify derives the run outcome from failure and success counts.
func classify(failed, succeeded int) Estado {
	switch {
	case failed == 0:
		return EstadoExitoso
	case succeeded > 0:
		return EstadoParcial
	default:
		return EstadoFallido
	}
}
