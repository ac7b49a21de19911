package exchange

import (
	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/model"
)

type UpsertUserRequest struct {
	User model.UAMUser `json:"user"`
}

func (u *UpsertUserRequest) Validate() error {
	if u.User.Email == "" {
		return except.NewError("user email is required", except.ErrInvalid)
	}
	return nil
}

type GetUserRequest struct {
	Email string `param:"email"`
}

type GetUserResponse struct {
	Data model.UAMUser `json:"data"`
}

type ListUsersResponse struct {
	Data []model.UAMUser `json:"data"`
}

type UpsertGroupRequest struct {
	Group model.UAMGroup `json:"group"`
}

func (u *UpsertGroupRequest) Validate() error {
	if u.Group.Name == "" {
		return except.NewError("group name is required", except.ErrInvalid)
	}
	return nil
}

type GetGroupRequest struct {
	Name string `param:"name"`
}

type GetGroupResponse struct {
	Data model.UAMGroup `json:"data"`
}

type ListGroupsResponse struct {
	Data []model.UAMGroup `json:"data"`
}

type LinkGroupRequest struct {
	Parent string `param:"name"`
	Child  string `json:"child"`
}

func (l *LinkGroupRequest) Validate() error {
	if l.Child == "" {
		return except.NewError("child group name is required", except.ErrInvalid)
	}
	return nil
}

type SetMembersRequest struct {
	Name   string   `param:"name"`
	Emails []string `json:"emails"`
}

type GroupUsersRequest struct {
	Name      string `param:"name"`
	Recursive bool   `query:"recursive"`
}

type SetRolesRequest struct {
	Name  string   `param:"name"`
	Roles []string `json:"roles"`
}

type UserRolesRequest struct {
	Email string `param:"email"`
}

type UserRolesResponse struct {
	Inherited map[string][]string `json:"inherited"`
}

type TreeResponse struct {
	Data *model.UAMTreeNode `json:"data"`
}
