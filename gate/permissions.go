package gate

import "github.com/AnTengye/invoicedesk/model"

// Permissions is what a role may do in the application
type Permissions struct {
	CanUploadInvoices  bool `json:"can_upload_invoices"`
	CanViewOwnInvoices bool `json:"can_view_own_invoices"`
	CanViewAllInvoices bool `json:"can_view_all_invoices"`
	CanViewReports     bool `json:"can_view_reports"`
	CanManageUsers     bool `json:"can_manage_users"`
	CanManageSettings  bool `json:"can_manage_settings"`
}

var rolePermissions = map[model.Role]Permissions{
	model.RoleUploader: {
		CanUploadInvoices:  true,
		CanViewOwnInvoices: true,
	},
	model.RoleAccountant: {
		CanUploadInvoices:  true,
		CanViewOwnInvoices: true,
		CanViewAllInvoices: true,
		CanViewReports:     true,
	},
	model.RoleAdmin: {
		CanUploadInvoices:  true,
		CanViewOwnInvoices: true,
		CanViewAllInvoices: true,
		CanViewReports:     true,
		CanManageUsers:     true,
		CanManageSettings:  true,
	},
}

// PermissionsFor returns the permissions of role; unknown roles get none
func PermissionsFor(role model.Role) Permissions {
	return rolePermissions[role]
}

// Screen is a navigable part of the application and the roles it requires
type Screen struct {
	Name  string
	Path  string
	Roles []model.Role
}

var (
	invoiceRoles = []model.Role{model.RoleUploader, model.RoleAccountant, model.RoleAdmin}
	reportRoles  = []model.Role{model.RoleAccountant, model.RoleAdmin}
	adminRoles   = []model.Role{model.RoleAdmin}
)

var (
	ScreenDashboard  = Screen{Name: "dashboard", Path: "/dashboard"}
	ScreenInvoices   = Screen{Name: "invoices", Path: "/invoices", Roles: invoiceRoles}
	ScreenUpload     = Screen{Name: "upload", Path: "/invoices/upload", Roles: invoiceRoles}
	ScreenInvoice    = Screen{Name: "invoice", Path: "/invoices/:id", Roles: invoiceRoles}
	ScreenReports    = Screen{Name: "reports", Path: "/reports", Roles: reportRoles}
	ScreenCategories = Screen{Name: "categories", Path: "/settings/categories", Roles: adminRoles}
)

// Screens lists every gated screen
func Screens() []Screen {
	return []Screen{ScreenDashboard, ScreenInvoices, ScreenUpload, ScreenInvoice, ScreenReports, ScreenCategories}
}

// Check runs Decide for the screen
func (s Screen) Check(user *model.User) Decision {
	return Decide(user, s.Roles, s.Path)
}
