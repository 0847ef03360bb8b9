package apiclient

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"evalconsole/internal/domain/org"
)

var _ org.RemoteAPI = (*Client)(nil)

func (c *Client) ListUnits(ctx context.Context, level org.Level, parentID org.ID) ([]org.Unit, error) {
	raw, err := c.list(ctx, string(level), query(level.ParentField(), string(parentID)))
	if err != nil {
		return nil, err
	}
	units, err := decodeList[org.Unit](raw)
	for i := range units {
		units[i].Level = level
	}
	return units, err
}

func (c *Client) CreateUnit(ctx context.Context, unit org.Unit) (org.Unit, error) {
	var out org.Unit
	err := c.do(ctx, http.MethodPost, string(unit.Level), unit.Payload(), &out)
	out.Level = unit.Level
	return out, err
}

func (c *Client) UpdateUnit(ctx context.Context, unit org.Unit) (org.Unit, error) {
	var out org.Unit
	err := c.do(ctx, http.MethodPatch, path(string(unit.Level), string(unit.ID)), unit.Payload(), &out)
	out.Level = unit.Level
	return out, err
}

func (c *Client) DeleteUnit(ctx context.Context, level org.Level, id org.ID) error {
	return c.do(ctx, http.MethodDelete, path(string(level), string(id)), nil, nil)
}

func (c *Client) ListEmployees(ctx context.Context, search string) ([]org.Employee, error) {
	raw, err := c.list(ctx, "employees", query("search", search))
	if err != nil {
		return nil, err
	}
	return decodeList[org.Employee](raw)
}

func (c *Client) GetEmployee(ctx context.Context, id org.ID) (org.Employee, error) {
	var emp org.Employee
	err := c.get(ctx, path("employees", string(id)), nil, &emp)
	return emp, err
}

func (c *Client) CreateEmployee(ctx context.Context, emp org.Employee) (org.Employee, error) {
	var out org.Employee
	err := c.do(ctx, http.MethodPost, "employees", emp, &out)
	return out, err
}

func (c *Client) UpdateEmployee(ctx context.Context, emp org.Employee) (org.Employee, error) {
	var out org.Employee
	err := c.do(ctx, http.MethodPatch, path("employees", string(emp.ID)), emp, &out)
	return out, err
}

func (c *Client) ListPlacements(ctx context.Context, employeeID org.ID) ([]org.Placement, error) {
	raw, err := c.list(ctx, "placements", query("employee_id", string(employeeID)))
	if err != nil {
		return nil, err
	}
	return decodeList[org.Placement](raw)
}

func (c *Client) CreatePlacement(ctx context.Context, p org.Placement) (org.Placement, error) {
	var out org.Placement
	err := c.do(ctx, http.MethodPost, "placements", p, &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context, role string) ([]org.User, error) {
	raw, err := c.list(ctx, "users", query("role", role))
	if err != nil {
		return nil, err
	}
	return decodeList[org.User](raw)
}

func (c *Client) GetUser(ctx context.Context, id org.ID) (org.User, error) {
	var u org.User
	err := c.get(ctx, path("users", string(id)), nil, &u)
	return u, err
}

func (c *Client) UpdateUser(ctx context.Context, id org.ID, p org.ProfileUpdate) (org.User, error) {
	var u org.User
	err := c.do(ctx, http.MethodPatch, path("users", string(id)), p, &u)
	return u, err
}

// Import uploads a spreadsheet. With dryRun the server validates only.
func (c *Client) Import(ctx context.Context, kind org.ImportKind, filename string, file io.Reader, dryRun bool) (org.ImportResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return org.ImportResult{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return org.ImportResult{}, err
	}
	if err := mw.WriteField("dryRun", strconv.FormatBool(dryRun)); err != nil {
		return org.ImportResult{}, err
	}
	if err := mw.Close(); err != nil {
		return org.ImportResult{}, err
	}
	var res org.ImportResult
	err = c.send(ctx, request{
		method:      http.MethodPost,
		endpoint:    path("imports", string(kind)),
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}, &res)
	return res, err
}
