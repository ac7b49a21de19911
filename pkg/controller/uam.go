package controller

import (
	"net/http"

	"github.com/dfh-cloud/dfh/pkg/exchange"
	"github.com/dfh-cloud/dfh/pkg/service"
	"github.com/labstack/echo/v4"
)

const UAMControllerKey = "UAMController"

type UAMController interface {
	Controller
	UpsertUser(ctx echo.Context) error
	GetUser(ctx echo.Context) error
	ListUsers(ctx echo.Context) error
	DeleteUser(ctx echo.Context) error
	UserRoles(ctx echo.Context) error
	UpsertGroup(ctx echo.Context) error
	GetGroup(ctx echo.Context) error
	ListGroups(ctx echo.Context) error
	DeleteGroup(ctx echo.Context) error
	Link(ctx echo.Context) error
	Unlink(ctx echo.Context) error
	SetMembers(ctx echo.Context) error
	GroupUsers(ctx echo.Context) error
	SetRoles(ctx echo.Context) error
	Tree(ctx echo.Context) error
}

type uamController struct {
	UAMService service.UAMService `inject:"UAMService"`
}

func (u *uamController) UpsertUser(ctx echo.Context) error {
	req := new(exchange.UpsertUserRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	u.UAMService.UpsertUser(req.User)
	return ctx.JSON(http.StatusCreated, exchange.GetUserResponse{Data: req.User})
}

func (u *uamController) GetUser(ctx echo.Context) error {
	req := new(exchange.GetUserRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	user, err := u.UAMService.GetUser(req.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exchange.GetUserResponse{Data: user})
}

func (u *uamController) ListUsers(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, exchange.ListUsersResponse{Data: u.UAMService.Users()})
}

func (u *uamController) DeleteUser(ctx echo.Context) error {
	req := new(exchange.GetUserRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	u.UAMService.DeleteUser(req.Email)
	return ctx.NoContent(http.StatusNoContent)
}

func (u *uamController) UserRoles(ctx echo.Context) error {
	req := new(exchange.UserRolesRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	inherited, err := u.UAMService.InheritedRoles(req.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exchange.UserRolesResponse{Inherited: inherited})
}

func (u *uamController) UpsertGroup(ctx echo.Context) error {
	req := new(exchange.UpsertGroupRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if err := u.UAMService.UpsertGroup(req.Group); err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, exchange.GetGroupResponse{Data: req.Group})
}

func (u *uamController) GetGroup(ctx echo.Context) error {
	req := new(exchange.GetGroupRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	group, err := u.UAMService.GetGroup(req.Name)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exchange.GetGroupResponse{Data: group})
}

func (u *uamController) ListGroups(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, exchange.ListGroupsResponse{Data: u.UAMService.Groups()})
}

func (u *uamController) DeleteGroup(ctx echo.Context) error {
	req := new(exchange.GetGroupRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	if err := u.UAMService.DeleteGroup(req.Name); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (u *uamController) SetMembers(ctx echo.Context) error {
	req := new(exchange.SetMembersRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	if err := u.UAMService.SetMembers(req.Name, req.Emails); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusOK)
}

func (u *uamController) GroupUsers(ctx echo.Context) error {
	req := new(exchange.GroupUsersRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	users, err := u.UAMService.GroupUsers(req.Name, req.Recursive)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exchange.ListUsersResponse{Data: users})
}

func (u *uamController) SetRoles(ctx echo.Context) error {
	req := new(exchange.SetRolesRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	if err := u.UAMService.SetRoles(req.Name, req.Roles); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusOK)
}

func (u *uamController) Link(ctx echo.Context) error {
	req := new(exchange.LinkGroupRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if err := u.UAMService.Link(req.Parent, req.Child); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusOK)
}

func (u *uamController) Unlink(ctx echo.Context) error {
	req := new(exchange.LinkGroupRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if err := u.UAMService.Unlink(req.Parent, req.Child); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusOK)
}

func (u *uamController) Tree(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, exchange.TreeResponse{Data: u.UAMService.Tree()})
}

func (u *uamController) Routes() []Route {
	return []Route{
		{
			Path:    "/users",
			Method:  http.MethodPost,
			Handler: u.UpsertUser,
		},
		{
			Path:    "/users",
			Method:  http.MethodGet,
			Handler: u.ListUsers,
		},
		{
			Path:    "/users/:email",
			Method:  http.MethodGet,
			Handler: u.GetUser,
		},
		{
			Path:    "/users/:email",
			Method:  http.MethodDelete,
			Handler: u.DeleteUser,
		},
		{
			Path:    "/users/:email/roles",
			Method:  http.MethodGet,
			Handler: u.UserRoles,
		},
		{
			Path:    "/groups",
			Method:  http.MethodPost,
			Handler: u.UpsertGroup,
		},
		{
			Path:    "/groups",
			Method:  http.MethodGet,
			Handler: u.ListGroups,
		},
		{
			Path:    "/groups/:name",
			Method:  http.MethodGet,
			Handler: u.GetGroup,
		},
		{
			Path:    "/groups/:name",
			Method:  http.MethodDelete,
			Handler: u.DeleteGroup,
		},
		{
			Path:    "/groups/:name/users",
			Method:  http.MethodPut,
			Handler: u.SetMembers,
		},
		{
			Path:    "/groups/:name/users",
			Method:  http.MethodGet,
			Handler: u.GroupUsers,
		},
		{
			Path:    "/groups/:name/roles",
			Method:  http.MethodPut,
			Handler: u.SetRoles,
		},
		{
			Path:    "/groups/:name/children",
			Method:  http.MethodPost,
			Handler: u.Link,
		},
		{
			Path:    "/groups/:name/children",
			Method:  http.MethodDelete,
			Handler: u.Unlink,
		},
		{
			Path:    "/tree",
			Method:  http.MethodGet,
			Handler: u.Tree,
		},
	}
}

func (u *uamController) Group() string {
	return "uam"
}
