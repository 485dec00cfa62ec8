// Package policy holds the static table of which roles may perform which operation.
package policy

import (
	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/models"
)

type Operation string

const (
	CreateRoom      Operation = "room.create"
	UpdateRoom      Operation = "room.update"
	DeleteRoom      Operation = "room.delete"
	StartRoomRental Operation = "room.rent.start"
	EndRoomRental   Operation = "room.rent.end"

	CreateItem      Operation = "inventory.create"
	UpdateItem      Operation = "inventory.update"
	DeleteItem      Operation = "inventory.delete"
	StartItemRental Operation = "inventory.rent.start"
	EndItemRental   Operation = "inventory.rent.end"

	RegisterAdmin   Operation = "user.register.admin"
	RegisterTeacher Operation = "user.register.teacher"
	ListAllUsers    Operation = "user.list.all"
	DeleteUser      Operation = "user.delete"
	UpdateOtherUser Operation = "user.update.other"
	ChangeRole      Operation = "user.update.role"

	ViewReports Operation = "report.view"
)

var (
	admins         = []models.Role{models.RoleAdmin, models.RoleSuperAdmin}
	teacherOrAdmin = []models.Role{models.RoleTeacher, models.RoleAdmin}
	everyone       = []models.Role{models.RoleUser, models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin}
)

// Table 操作 -> 允许的角色
var Table = map[Operation][]models.Role{
	CreateRoom:      admins,
	UpdateRoom:      admins,
	DeleteRoom:      admins,
	StartRoomRental: teacherOrAdmin,
	EndRoomRental:   teacherOrAdmin,

	CreateItem:      admins,
	UpdateItem:      admins,
	DeleteItem:      admins,
	StartItemRental: everyone,
	EndItemRental:   everyone,

	RegisterAdmin:   {models.RoleSuperAdmin},
	RegisterTeacher: {models.RoleAdmin},
	ListAllUsers:    teacherOrAdmin,
	DeleteUser:      teacherOrAdmin,
	UpdateOtherUser: admins,
	ChangeRole:      admins,

	ViewReports: admins,
}

// Allowed 未登记的操作一律拒绝
func Allowed(op Operation, role models.Role) bool {
	for _, r := range Table[op] {
		if r == role {
			return true
		}
	}
	return false
}

func Authorize(op Operation, role models.Role) error {
	if !Allowed(op, role) {
		return apperr.Forbidden("You do not have permission to perform this action")
	}
	return nil
}

var rank = map[models.Role]int{
	models.RoleUser:       1,
	models.RoleTeacher:    2,
	models.RoleAdmin:      3,
	models.RoleSuperAdmin: 4,
}

// Outranks 操作他人账号时，调用者级别必须严格高于目标
func Outranks(actor, target models.Role) bool {
	return rank[actor] > rank[target]
}

// AuthorizeOver 在 Authorize 之外再校验级别
func AuthorizeOver(op Operation, actor, target models.Role) error {
	if err := Authorize(op, actor); err != nil {
		return err
	}
	if !Outranks(actor, target) {
		return apperr.Forbidden("You cannot modify a user of equal or higher role")
	}
	return nil
}
