package model

// Privileges checked by the purchasing display and the receipt form.
const (
	PrivMaintainPurchaseOrders    = "MaintainPurchaseOrders"
	PrivViewPurchaseOrders        = "ViewPurchaseOrders"
	PrivViewInventoryAvailability = "ViewInventoryAvailability"
	PrivReschedulePurchaseOrders  = "ReschedulePurchaseOrders"
	PrivChangePurchaseOrderQty    = "ChangePurchaseOrderQty"
	PrivAlterTransactionDates     = "AlterTransactionDates"
	PrivCreateReceiptTrans        = "CreateReceiptTrans"
	PrivViewInventoryHistory      = "ViewInventoryHistory"
	PrivIssueWoMaterials          = "IssueWoMaterials"
	PrivViewCountTags             = "ViewCountTags"
)

// AllPrivileges lists every privilege known to the application.
var AllPrivileges = []string{
	PrivMaintainPurchaseOrders,
	PrivViewPurchaseOrders,
	PrivViewInventoryAvailability,
	PrivReschedulePurchaseOrders,
	PrivChangePurchaseOrderQty,
	PrivAlterTransactionDates,
	PrivCreateReceiptTrans,
	PrivViewInventoryHistory,
	PrivIssueWoMaterials,
	PrivViewCountTags,
}

// KnownPrivilege reports whether name is one of AllPrivileges.
func KnownPrivilege(name string) bool {
	for _, p := range AllPrivileges {
		if p == name {
			return true
		}
	}
	return false
}

// PrivilegeSet is the set of privileges held by one user.
type PrivilegeSet map[string]bool

// Has reports whether the set contains the privilege. A nil set holds nothing.
func (s PrivilegeSet) Has(name string) bool {
	return s[name]
}

// FullPrivileges returns a set holding every known privilege.
func FullPrivileges() PrivilegeSet {
	s := make(PrivilegeSet, len(AllPrivileges))
	for _, p := range AllPrivileges {
		s[p] = true
	}
	return s
}
