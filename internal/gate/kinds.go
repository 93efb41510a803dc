package gate

// Kind identifies an entity kind the gate knows how to reach. Only kinds on
// this list can be touched through the gate; tenant-owned kinds additionally
// get the tenant predicate enforced on every operation.
type Kind string

const (
	KindTenants         Kind = "tenants"
	KindProducts        Kind = "products"
	KindProductVariants Kind = "product_variants"
	KindInventory       Kind = "inventory"
	KindCustomers       Kind = "customers"
	KindCategories      Kind = "categories"
	KindBrands          Kind = "brands"
	KindAddresses       Kind = "addresses"
	KindOrders          Kind = "orders"
	KindOrderItems      Kind = "order_items"
	KindOrderCounters   Kind = "order_counters"
	KindPayments        Kind = "payments"
	KindDomainEvents    Kind = "domain_events"
	KindAuditLogs       Kind = "audit_logs"
)

type kindSpec struct {
	table       string
	tenantOwned bool
}

// audit_logs and tenants pass through unscoped: audit entries may describe
// system-level actions with no tenant, and the tenants table is the registry
// the scoping derives from.
var kindSpecs = map[Kind]kindSpec{
	KindTenants:         {table: "tenants", tenantOwned: false},
	KindProducts:        {table: "products", tenantOwned: true},
	KindProductVariants: {table: "product_variants", tenantOwned: true},
	KindInventory:       {table: "inventory", tenantOwned: true},
	KindCustomers:       {table: "customers", tenantOwned: true},
	KindCategories:      {table: "categories", tenantOwned: true},
	KindBrands:          {table: "brands", tenantOwned: true},
	KindAddresses:       {table: "addresses", tenantOwned: true},
	KindOrders:          {table: "orders", tenantOwned: true},
	KindOrderItems:      {table: "order_items", tenantOwned: true},
	KindOrderCounters:   {table: "order_counters", tenantOwned: true},
	KindPayments:        {table: "payments", tenantOwned: true},
	KindDomainEvents:    {table: "domain_events", tenantOwned: true},
	KindAuditLogs:       {table: "audit_logs", tenantOwned: false},
}

// TenantOwned reports whether the kind is subject to tenant scoping.
func TenantOwned(kind Kind) bool {
	spec, ok := kindSpecs[kind]
	return ok && spec.tenantOwned
}
